package store

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id              TEXT PRIMARY KEY,
	url             TEXT NOT NULL UNIQUE,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	thumbnail_url   TEXT NOT NULL DEFAULT '',
	window_size     INTEGER NOT NULL DEFAULT 50,
	feed_type       TEXT NOT NULL DEFAULT 'audio',
	enabled         INTEGER NOT NULL DEFAULT 1,
	last_refresh_at TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
	id               TEXT PRIMARY KEY,
	channel_id       TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	video_id         TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	thumbnail_url    TEXT NOT NULL DEFAULT '',
	duration_sec     INTEGER,
	published_at     TEXT,
	downloaded_at    TEXT,
	file_path_audio  TEXT,
	file_path_video  TEXT,
	file_size_audio  INTEGER,
	file_size_video  INTEGER,
	status           TEXT NOT NULL DEFAULT 'pending',
	retry_count      INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_episodes_channel ON episodes(channel_id);
CREATE INDEX IF NOT EXISTS idx_episodes_channel_status ON episodes(channel_id, status);
CREATE INDEX IF NOT EXISTS idx_episodes_published ON episodes(channel_id, published_at DESC);

CREATE TABLE IF NOT EXISTS queue_entries (
	id            TEXT PRIMARY KEY,
	episode_id    TEXT NOT NULL UNIQUE REFERENCES episodes(id) ON DELETE CASCADE,
	priority      INTEGER NOT NULL DEFAULT 5,
	status        TEXT NOT NULL DEFAULT 'pending',
	attempts      INTEGER NOT NULL DEFAULT 0,
	max_attempts  INTEGER NOT NULL DEFAULT 3,
	last_error    TEXT,
	next_retry_at TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_claimable ON queue_entries(status, priority, created_at);
`
