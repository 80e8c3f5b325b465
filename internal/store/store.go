// Package store is the Store (C1): the durable home for channels, episodes
// and queue entries, and the sole owner of the invariants and the atomic
// claim-next primitive the rest of the pipeline relies on.
//
// It is backed by modernc.org/sqlite through database/sql, the same
// driver/import pattern the teacher uses to read a Podcast Addict backup
// (internal/sources/podcast_addict_backup.go in the reference tree) — here
// promoted from an occasional read-only parse to the system's single
// source of truth, per the specification's single-datastore model.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a sqlite-backed connection pool. Multiple goroutines may call
// Store methods concurrently; claim-next and every other mutating method
// runs inside its own transaction. The pool holds a single connection, so
// reads and writes take turns on it: a read in progress delays a writer.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithClock overrides the time source; tests use this to make retry-policy
// scenarios deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if necessary) the sqlite database at path, applies
// its pragmas (WAL, busy timeout, foreign keys), and runs the schema
// migration.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// A single physical connection avoids SQLITE_BUSY storms; readers and
	// writers share it, so they do not run concurrently.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	var current int
	row := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("store: read schema_version: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("store: seed schema_version: %w", err)
		}
		current = schemaVersion
	}

	slog.Info("store migrated", "schema_version", current)
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func scanTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("store: parse time %q: %w", v.String, err)
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite surfaces constraint violations with this
	// substring regardless of which UNIQUE index fired.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
