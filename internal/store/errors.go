package store

import "errors"

// ErrDuplicate is returned when a write would violate a uniqueness
// invariant (channel.url, episode.video_id, or queue.episode_id).
var ErrDuplicate = errors.New("store: duplicate")

// ErrNotFound is returned when a lookup by id misses.
var ErrNotFound = errors.New("store: not found")

// ErrInvariant marks a programmer error: an attempted write that would
// break an invariant the Store enforces unconditionally (e.g. an
// out-of-range window_size). Callers should treat this as a bug, not a
// retryable condition.
var ErrInvariant = errors.New("store: invariant violation")
