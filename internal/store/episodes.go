package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"channelcast/internal/model"
)

// EpisodeFilter narrows ListEpisodes.
type EpisodeFilter struct {
	ChannelID string
	Status    model.EpisodeStatus // empty = any

	Limit  int
	Offset int
}

// CreateEpisode inserts a new episode in EpisodePending status. Returns
// ErrDuplicate if video_id already exists.
func (s *Store) CreateEpisode(ctx context.Context, e *model.Episode) error {
	if e.Status == "" {
		e.Status = model.EpisodePending
	}
	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, channel_id, video_id, title, description, thumbnail_url, duration_sec, published_at,
			downloaded_at, file_path_audio, file_path_video, file_size_audio, file_size_video, status, retry_count,
			error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ChannelID, e.VideoID, e.Title, e.Description, e.ThumbnailURL, e.DurationSec, nullTime(e.PublishedAt),
		nullTime(e.DownloadedAt), e.FilePathAudio, e.FilePathVideo, e.FileSizeAudio, e.FileSizeVideo, string(e.Status),
		e.RetryCount, e.ErrorMessage, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: episode video_id %q", ErrDuplicate, e.VideoID)
	}
	if err != nil {
		return fmt.Errorf("store: create episode: %w", err)
	}
	return nil
}

// GetEpisode fetches an episode by id.
func (s *Store) GetEpisode(ctx context.Context, id string) (*model.Episode, error) {
	row := s.db.QueryRowContext(ctx, episodeSelect+" WHERE id = ?", id)
	return scanEpisode(row)
}

// GetEpisodeByVideoID fetches an episode by its source video id. The refresh
// scheduler does not call it; it dedups via CreateEpisode's ErrDuplicate.
func (s *Store) GetEpisodeByVideoID(ctx context.Context, videoID string) (*model.Episode, error) {
	row := s.db.QueryRowContext(ctx, episodeSelect+" WHERE video_id = ?", videoID)
	return scanEpisode(row)
}

// ListEpisodes lists episodes, optionally filtered by channel and/or
// status, newest-published first. An empty ChannelID lists across every
// channel.
func (s *Store) ListEpisodes(ctx context.Context, f EpisodeFilter) ([]*model.Episode, error) {
	query := episodeSelect + " WHERE 1=1"
	var args []any

	if f.ChannelID != "" {
		query += " AND channel_id = ?"
		args = append(args, f.ChannelID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY (published_at IS NOT NULL) DESC, published_at DESC, created_at DESC"

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list episodes: %w", err)
	}
	defer rows.Close()

	var out []*model.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEpisode persists the full mutable episode row, enforcing invariant
// I2 (completed requires a file path+size) and I3 (error_message set iff
// status is failed).
func (s *Store) UpdateEpisode(ctx context.Context, e *model.Episode) error {
	if e.Status == model.EpisodeCompleted && !e.HasCompletedFile() {
		return fmt.Errorf("%w: completed episode %s missing file path/size", ErrInvariant, e.ID)
	}
	if e.Status == model.EpisodeFailed && e.ErrorMessage == nil {
		return fmt.Errorf("%w: failed episode %s missing error_message", ErrInvariant, e.ID)
	}
	if e.Status != model.EpisodeFailed && e.ErrorMessage != nil {
		return fmt.Errorf("%w: non-failed episode %s carries error_message", ErrInvariant, e.ID)
	}

	e.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE episodes SET title=?, description=?, thumbnail_url=?, duration_sec=?, published_at=?, downloaded_at=?,
			file_path_audio=?, file_path_video=?, file_size_audio=?, file_size_video=?, status=?, retry_count=?,
			error_message=?, updated_at=?
		WHERE id=?`,
		e.Title, e.Description, e.ThumbnailURL, e.DurationSec, nullTime(e.PublishedAt), nullTime(e.DownloadedAt),
		e.FilePathAudio, e.FilePathVideo, e.FileSizeAudio, e.FileSizeVideo, string(e.Status), e.RetryCount,
		e.ErrorMessage, e.UpdatedAt.Format(time.RFC3339Nano), e.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update episode: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

// UpdateEpisodeStatus is a narrow helper for state-machine transitions that
// don't touch any other field (used by the worker pool between stages).
func (s *Store) UpdateEpisodeStatus(ctx context.Context, id string, status model.EpisodeStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE episodes SET status=?, updated_at=? WHERE id=?`,
		string(status), s.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("store: update episode status: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

// DeleteEpisode cascades to the episode's queue entry via FK ON DELETE
// CASCADE; callers remove media files separately (retention owns that).
func (s *Store) DeleteEpisode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("store: delete episode: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

// MarkEpisodeEvicted transitions an episode to EpisodeDeleted and clears its
// file path/size columns. Retention calls this after it has already removed
// the underlying files on disk; the row itself is kept so video_id dedup
// still prevents the evicted video from being re-downloaded.
func (s *Store) MarkEpisodeEvicted(ctx context.Context, id string) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE episodes SET status=?, file_path_audio=NULL, file_path_video=NULL,
			file_size_audio=NULL, file_size_video=NULL, updated_at=?
		WHERE id=?`,
		string(model.EpisodeDeleted), now, id)
	if err != nil {
		return fmt.Errorf("store: mark episode evicted: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

const episodeSelect = `SELECT id, channel_id, video_id, title, description, thumbnail_url, duration_sec, published_at,
	downloaded_at, file_path_audio, file_path_video, file_size_audio, file_size_video, status, retry_count,
	error_message, created_at, updated_at FROM episodes`

func scanEpisode(row rowScanner) (*model.Episode, error) {
	var e model.Episode
	var publishedAt, downloadedAt sql.NullString
	var createdAt, updatedAt, status string

	err := row.Scan(&e.ID, &e.ChannelID, &e.VideoID, &e.Title, &e.Description, &e.ThumbnailURL, &e.DurationSec,
		&publishedAt, &downloadedAt, &e.FilePathAudio, &e.FilePathVideo, &e.FileSizeAudio, &e.FileSizeVideo,
		&status, &e.RetryCount, &e.ErrorMessage, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan episode: %w", err)
	}

	e.Status = model.EpisodeStatus(status)
	if e.PublishedAt, err = scanTime(publishedAt); err != nil {
		return nil, err
	}
	if e.DownloadedAt, err = scanTime(downloadedAt); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("store: parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("store: parse updated_at: %w", err)
	}
	return &e, nil
}
