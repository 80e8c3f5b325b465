package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"channelcast/internal/model"
)

// ChannelFilter narrows ListChannels.
type ChannelFilter struct {
	Enabled  *bool
	FeedType model.FeedType // empty = any

	// OrderBy is one of "created_at", "updated_at", "last_refresh_at".
	// Null last_refresh_at sorts first (oldest) regardless of direction,
	// matching the refresh scheduler's "null treated as oldest" rule.
	OrderBy string
	Desc    bool

	Limit  int
	Offset int
}

// CreateChannel inserts a new channel. Returns ErrDuplicate if url already
// exists, ErrInvariant if window_size/feed_type are out of range.
func (s *Store) CreateChannel(ctx context.Context, c *model.Channel) error {
	if c.WindowSize == 0 {
		c.WindowSize = model.DefaultWindowSize
	}
	if c.FeedType == "" {
		c.FeedType = model.FeedAudio
	}
	if c.WindowSize < model.MinWindowSize || c.WindowSize > model.MaxWindowSize {
		return fmt.Errorf("%w: window_size %d out of range", ErrInvariant, c.WindowSize)
	}
	if !c.FeedType.Valid() {
		return fmt.Errorf("%w: feed_type %q invalid", ErrInvariant, c.FeedType)
	}

	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, url, title, description, thumbnail_url, window_size, feed_type, enabled, last_refresh_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.URL, c.Title, c.Description, c.ThumbnailURL, c.WindowSize, string(c.FeedType), boolToInt(c.Enabled),
		nullTime(c.LastRefreshAt), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: channel url %q", ErrDuplicate, c.URL)
	}
	if err != nil {
		return fmt.Errorf("store: create channel: %w", err)
	}
	return nil
}

// GetChannel fetches a channel by id.
func (s *Store) GetChannel(ctx context.Context, id string) (*model.Channel, error) {
	row := s.db.QueryRowContext(ctx, channelSelect+" WHERE id = ?", id)
	return scanChannel(row)
}

// ListChannels lists channels matching filter, applying ordering and
// pagination.
func (s *Store) ListChannels(ctx context.Context, f ChannelFilter) ([]*model.Channel, error) {
	query := channelSelect
	var args []any
	var where []string

	if f.Enabled != nil {
		where = append(where, "enabled = ?")
		args = append(args, boolToInt(*f.Enabled))
	}
	if f.FeedType != "" {
		where = append(where, "feed_type = ?")
		args = append(args, string(f.FeedType))
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	orderCol := "created_at"
	switch f.OrderBy {
	case "updated_at", "last_refresh_at":
		orderCol = f.OrderBy
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	if orderCol == "last_refresh_at" {
		// nulls (never refreshed) sort as oldest regardless of direction.
		query += fmt.Sprintf(" ORDER BY (last_refresh_at IS NOT NULL), last_refresh_at %s", dir)
	} else {
		query += fmt.Sprintf(" ORDER BY %s %s", orderCol, dir)
	}

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	defer rows.Close()

	var out []*model.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateChannel persists mutable fields of c (everything but id/url
// uniqueness enforcement, which CreateChannel owns).
func (s *Store) UpdateChannel(ctx context.Context, c *model.Channel) error {
	if c.WindowSize < model.MinWindowSize || c.WindowSize > model.MaxWindowSize {
		return fmt.Errorf("%w: window_size %d out of range", ErrInvariant, c.WindowSize)
	}
	if !c.FeedType.Valid() {
		return fmt.Errorf("%w: feed_type %q invalid", ErrInvariant, c.FeedType)
	}

	c.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE channels SET title=?, description=?, thumbnail_url=?, window_size=?, feed_type=?, enabled=?, updated_at=?
		WHERE id=?`,
		c.Title, c.Description, c.ThumbnailURL, c.WindowSize, string(c.FeedType), boolToInt(c.Enabled),
		c.UpdatedAt.Format(time.RFC3339Nano), c.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update channel: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

// TouchRefresh updates only last_refresh_at, the one field the refresh
// scheduler is allowed to mutate directly.
func (s *Store) TouchRefresh(ctx context.Context, channelID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE channels SET last_refresh_at=?, updated_at=? WHERE id=?`,
		at.UTC().Format(time.RFC3339Nano), s.now().UTC().Format(time.RFC3339Nano), channelID)
	if err != nil {
		return fmt.Errorf("store: touch refresh: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

// DeleteChannel cascades to episodes and queue entries via FK ON DELETE
// CASCADE; callers are responsible for removing the corresponding media
// files first (retention owns file deletion, never the Store), as
// HandleDeleteChannel does.
func (s *Store) DeleteChannel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("store: delete channel: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

const channelSelect = `SELECT id, url, title, description, thumbnail_url, window_size, feed_type, enabled, last_refresh_at, created_at, updated_at FROM channels`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*model.Channel, error) {
	var c model.Channel
	var enabled int
	var lastRefresh sql.NullString
	var createdAt, updatedAt string
	var feedType string

	err := row.Scan(&c.ID, &c.URL, &c.Title, &c.Description, &c.ThumbnailURL, &c.WindowSize, &feedType, &enabled, &lastRefresh, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan channel: %w", err)
	}

	c.FeedType = model.FeedType(feedType)
	c.Enabled = enabled != 0
	if c.LastRefreshAt, err = scanTime(lastRefresh); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("store: parse created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("store: parse updated_at: %w", err)
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
