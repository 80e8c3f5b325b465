package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"channelcast/internal/model"
)

// backoffSchedule maps attempt number (the attempt about to be made, 1-based)
// to the delay before it may be claimed, per the specification's retry
// policy: attempt 1 immediate, 2 after 5m, 3 after 30m, 4 after 2h, 5 after 8h.
var backoffSchedule = map[int]time.Duration{
	1: 0,
	2: 5 * time.Minute,
	3: 30 * time.Minute,
	4: 2 * time.Hour,
	5: 8 * time.Hour,
}

// BackoffFor returns the delay before attempt n (1-based) may be retried.
// Attempts beyond the explicit schedule reuse the longest defined delay.
func BackoffFor(attempt int) time.Duration {
	if d, ok := backoffSchedule[attempt]; ok {
		return d
	}
	return backoffSchedule[5]
}

// InsertQueueEntry enqueues work for an episode. Returns ErrDuplicate if the
// episode already has a queue entry (invariant I4: at most one per episode).
func (s *Store) InsertQueueEntry(ctx context.Context, q *model.QueueEntry) error {
	if q.Priority == 0 {
		q.Priority = model.DefaultPriority
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = model.DefaultMaxAttempts
	}
	if q.Priority < model.MinPriority || q.Priority > model.MaxPriority {
		return fmt.Errorf("%w: priority %d out of range", ErrInvariant, q.Priority)
	}
	if q.Status == "" {
		q.Status = model.QueuePending
	}

	now := s.now().UTC()
	q.CreatedAt, q.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_entries (id, episode_id, priority, status, attempts, max_attempts, last_error, next_retry_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.EpisodeID, q.Priority, string(q.Status), q.Attempts, q.MaxAttempts, q.LastError, nullTime(q.NextRetryAt),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: queue entry for episode %q", ErrDuplicate, q.EpisodeID)
	}
	if err != nil {
		return fmt.Errorf("store: insert queue entry: %w", err)
	}
	return nil
}

// ClaimNext atomically selects the highest-priority claimable queue entry
// (pending, next_retry_at null-or-past), flips it and its episode to the
// in-progress equivalents, increments attempts, and returns it. Returns
// ErrNotFound if nothing is claimable.
//
// Ordering per the specification: lowest priority value wins, tiebreak by
// oldest created_at, further tiebreak by lexicographic id. The whole
// select-then-update runs inside a single transaction so concurrent workers
// never observe or claim the same row twice.
func (s *Store) ClaimNext(ctx context.Context) (*model.QueueEntry, error) {
	var claimed *model.QueueEntry

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC().Format(time.RFC3339Nano)

		row := tx.QueryRowContext(ctx, queueSelect+`
			WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
			ORDER BY priority ASC, created_at ASC, id ASC
			LIMIT 1`,
			string(model.QueuePending), now)

		q, err := scanQueueEntry(row)
		if err == ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		q.Status = model.QueueInProgress
		q.Attempts++
		q.UpdatedAt = s.now().UTC()

		res, err := tx.ExecContext(ctx, `
			UPDATE queue_entries SET status=?, attempts=?, updated_at=?
			WHERE id=? AND status=?`,
			string(q.Status), q.Attempts, q.UpdatedAt.Format(time.RFC3339Nano), q.ID, string(model.QueuePending))
		if err != nil {
			return fmt.Errorf("store: claim queue entry: %w", err)
		}
		if err := requireAffected(res, ErrNotFound); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE episodes SET status=?, updated_at=? WHERE id=?`,
			string(model.EpisodeDownloading), q.UpdatedAt.Format(time.RFC3339Nano), q.EpisodeID); err != nil {
			return fmt.Errorf("store: claim episode transition: %w", err)
		}

		claimed = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkQueueCompleted flips a claimed queue entry to completed. Callers must
// have already persisted the episode's completed status and file paths via
// UpdateEpisode before calling this; here it only flips the queue row.
func (s *Store) MarkQueueCompleted(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx, `UPDATE queue_entries SET status=?, next_retry_at=NULL, updated_at=? WHERE id=?`,
			string(model.QueueCompleted), now, id)
		if err != nil {
			return fmt.Errorf("store: mark queue completed: %w", err)
		}
		return requireAffected(res, ErrNotFound)
	})
}

// MarkFailedRetry records a retryable failure: increments nothing further
// (ClaimNext already incremented attempts for this try), sets last_error,
// computes next_retry_at from the backoff schedule, and returns the entry to
// pending. The episode is left at `pending` per the state-machine diagram.
// If attempts has reached max_attempts, the failure is terminal instead (see
// MarkFailedPermanent) — callers decide which to call based on q.Attempts.
func (s *Store) MarkFailedRetry(ctx context.Context, id string, lastError string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, queueSelect+" WHERE id = ?", id)
		q, err := scanQueueEntry(row)
		if err != nil {
			return err
		}

		next := s.now().UTC().Add(BackoffFor(q.Attempts + 1))
		now := s.now().UTC().Format(time.RFC3339Nano)

		res, err := tx.ExecContext(ctx, `
			UPDATE queue_entries SET status=?, last_error=?, next_retry_at=?, updated_at=? WHERE id=?`,
			string(model.QueuePending), lastError, next.Format(time.RFC3339Nano), now, id)
		if err != nil {
			return fmt.Errorf("store: mark queue failed-retry: %w", err)
		}
		if err := requireAffected(res, ErrNotFound); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE episodes SET status=?, updated_at=? WHERE id=?`,
			string(model.EpisodePending), now, q.EpisodeID)
		if err != nil {
			return fmt.Errorf("store: mark episode pending after retry: %w", err)
		}
		return nil
	})
}

// MarkFailedPermanent terminates a queue entry: status=failed, next_retry_at
// cleared, episode flipped to failed with error_message set.
func (s *Store) MarkFailedPermanent(ctx context.Context, id string, errMsg string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, queueSelect+" WHERE id = ?", id)
		q, err := scanQueueEntry(row)
		if err != nil {
			return err
		}

		now := s.now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx, `
			UPDATE queue_entries SET status=?, last_error=?, next_retry_at=NULL, updated_at=? WHERE id=?`,
			string(model.QueueFailed), errMsg, now, id)
		if err != nil {
			return fmt.Errorf("store: mark queue failed-permanent: %w", err)
		}
		if err := requireAffected(res, ErrNotFound); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE episodes SET status=?, error_message=?, updated_at=? WHERE id=?`,
			string(model.EpisodeFailed), errMsg, now, q.EpisodeID)
		if err != nil {
			return fmt.Errorf("store: mark episode failed: %w", err)
		}
		return nil
	})
}

// ReleaseClaim releases a claimed entry back to pending without
// incrementing attempts or touching last_error — used for shutdown/
// cancellation, which the specification says is not a failure.
func (s *Store) ReleaseClaim(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, queueSelect+" WHERE id = ?", id)
		q, err := scanQueueEntry(row)
		if err != nil {
			return err
		}

		now := s.now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx, `UPDATE queue_entries SET status=?, updated_at=? WHERE id=?`,
			string(model.QueuePending), now, id)
		if err != nil {
			return fmt.Errorf("store: release claim: %w", err)
		}
		if err := requireAffected(res, ErrNotFound); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE episodes SET status=?, updated_at=? WHERE id=?`,
			string(model.EpisodePending), now, q.EpisodeID)
		if err != nil {
			return fmt.Errorf("store: release episode claim: %w", err)
		}
		return nil
	})
}

// CancelQueueEntry marks an entry cancelled (used when its episode is
// deleted out from under an in-progress worker would instead cascade via FK;
// this path is for explicit admin cancellation).
func (s *Store) CancelQueueEntry(ctx context.Context, id string) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `UPDATE queue_entries SET status=?, next_retry_at=NULL, updated_at=? WHERE id=?`,
		string(model.QueueCancelled), now, id)
	if err != nil {
		return fmt.Errorf("store: cancel queue entry: %w", err)
	}
	return requireAffected(res, ErrNotFound)
}

// ResetForManualRetry reverts a terminally failed queue entry (and its
// episode) to pending with attempts reset to 0 and next_retry_at cleared,
// per the admin retry endpoint (§6).
func (s *Store) ResetForManualRetry(ctx context.Context, episodeID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, episodeSelect+" WHERE id = ?", episodeID)
		e, err := scanEpisode(row)
		if err != nil {
			return err
		}
		if e.Status != model.EpisodeFailed {
			return fmt.Errorf("%w: episode %s is not failed", ErrInvariant, episodeID)
		}

		now := s.now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx, `
			UPDATE episodes SET status=?, error_message=NULL, updated_at=? WHERE id=?`,
			string(model.EpisodePending), now, episodeID); err != nil {
			return fmt.Errorf("store: reset episode for retry: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE queue_entries SET status=?, attempts=0, last_error=NULL, next_retry_at=NULL, updated_at=?
			WHERE episode_id=?`,
			string(model.QueuePending), now, episodeID)
		if err != nil {
			return fmt.Errorf("store: reset queue entry for retry: %w", err)
		}
		return requireAffected(res, ErrNotFound)
	})
}

// ReleaseStaleClaims reverts all in_progress queue entries (and their
// episodes) to pending without incrementing attempts. The worker pool calls
// this once at startup, standing in for a process-local lease table per the
// specification's simplest documented reaper strategy.
func (s *Store) ReleaseStaleClaims(ctx context.Context) (int, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx, `UPDATE queue_entries SET status=?, updated_at=? WHERE status=?`,
			string(model.QueuePending), now, string(model.QueueInProgress))
		if err != nil {
			return fmt.Errorf("store: release stale claims: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: release stale claims rows affected: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE episodes SET status=?, updated_at=?
			WHERE status IN (?, ?)`,
			string(model.EpisodePending), now, string(model.EpisodeDownloading), string(model.EpisodeProcessing))
		if err != nil {
			return fmt.Errorf("store: release stale episodes: %w", err)
		}
		return nil
	})
	return int(n), err
}

// ReapStuck finds in_progress entries whose updated_at predates the given
// threshold and releases them back to pending, the periodic counterpart to
// ReleaseStaleClaims's startup sweep.
func (s *Store) ReapStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cutoff := s.now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
		now := s.now().UTC().Format(time.RFC3339Nano)

		rows, err := tx.QueryContext(ctx, `SELECT id, episode_id FROM queue_entries WHERE status=? AND updated_at < ?`,
			string(model.QueueInProgress), cutoff)
		if err != nil {
			return fmt.Errorf("store: reap stuck scan: %w", err)
		}
		var ids, episodeIDs []string
		for rows.Next() {
			var id, epID string
			if err := rows.Scan(&id, &epID); err != nil {
				rows.Close()
				return fmt.Errorf("store: reap stuck scan row: %w", err)
			}
			ids = append(ids, id)
			episodeIDs = append(episodeIDs, epID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, `UPDATE queue_entries SET status=?, updated_at=? WHERE id=?`,
				string(model.QueuePending), now, id); err != nil {
				return fmt.Errorf("store: reap stuck queue entry %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE episodes SET status=?, updated_at=? WHERE id=?`,
				string(model.EpisodePending), now, episodeIDs[i]); err != nil {
				return fmt.Errorf("store: reap stuck episode %s: %w", episodeIDs[i], err)
			}
		}
		n = int64(len(ids))
		return nil
	})
	return int(n), err
}

// CountQueueByStatus returns the number of queue entries in each status.
func (s *Store) CountQueueByStatus(ctx context.Context) (map[model.QueueStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue_entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: count queue by status: %w", err)
	}
	defer rows.Close()

	out := map[model.QueueStatus]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("store: count queue by status row: %w", err)
		}
		out[model.QueueStatus(status)] = count
	}
	return out, rows.Err()
}

// ListQueueByStatus lists queue entries in a given status, oldest first —
// used to render in-progress/failed lists for the queue status endpoint.
func (s *Store) ListQueueByStatus(ctx context.Context, status model.QueueStatus, limit int) ([]*model.QueueEntry, error) {
	query := queueSelect + " WHERE status = ? ORDER BY created_at ASC"
	args := []any{string(status)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list queue by status: %w", err)
	}
	defer rows.Close()

	var out []*model.QueueEntry
	for rows.Next() {
		q, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetQueueEntryByEpisodeID fetches the (at most one, per I4) queue entry for
// an episode.
func (s *Store) GetQueueEntryByEpisodeID(ctx context.Context, episodeID string) (*model.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, queueSelect+" WHERE episode_id = ?", episodeID)
	return scanQueueEntry(row)
}

const queueSelect = `SELECT id, episode_id, priority, status, attempts, max_attempts, last_error, next_retry_at, created_at, updated_at FROM queue_entries`

func scanQueueEntry(row rowScanner) (*model.QueueEntry, error) {
	var q model.QueueEntry
	var nextRetry sql.NullString
	var createdAt, updatedAt, status string

	err := row.Scan(&q.ID, &q.EpisodeID, &q.Priority, &status, &q.Attempts, &q.MaxAttempts, &q.LastError, &nextRetry,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan queue entry: %w", err)
	}

	q.Status = model.QueueStatus(status)
	if q.NextRetryAt, err = scanTime(nextRetry); err != nil {
		return nil, err
	}
	if q.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("store: parse created_at: %w", err)
	}
	if q.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("store: parse updated_at: %w", err)
	}
	return &q, nil
}
