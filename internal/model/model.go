// Package model defines the entities the Store persists: channels, episodes
// and queue entries, plus the enums and state-machine transitions that bind
// them together.
package model

import (
	"time"
)

// FeedType controls which artifact(s) a channel's episodes are downloaded as.
type FeedType string

const (
	FeedAudio FeedType = "audio"
	FeedVideo FeedType = "video"
	FeedBoth  FeedType = "both"
)

// Valid reports whether f is one of the known feed types.
func (f FeedType) Valid() bool {
	switch f {
	case FeedAudio, FeedVideo, FeedBoth:
		return true
	default:
		return false
	}
}

// EpisodeStatus is the state-machine position of an Episode.
type EpisodeStatus string

const (
	EpisodePending     EpisodeStatus = "pending"
	EpisodeDownloading EpisodeStatus = "downloading"
	EpisodeProcessing  EpisodeStatus = "processing"
	EpisodeCompleted   EpisodeStatus = "completed"
	EpisodeFailed      EpisodeStatus = "failed"
	EpisodeDeleted     EpisodeStatus = "deleted"
)

// QueueStatus is the state-machine position of a QueueEntry.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueInProgress QueueStatus = "in_progress"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
	QueueCancelled  QueueStatus = "cancelled"
)

const (
	// MinWindowSize and MaxWindowSize bound Channel.WindowSize.
	MinWindowSize = 1
	MaxWindowSize = 1000
	// DefaultWindowSize is applied when a channel is created without one.
	DefaultWindowSize = 50

	// MinPriority and MaxPriority bound QueueEntry.Priority; 1 is highest.
	MinPriority = 1
	MaxPriority = 10
	// DefaultPriority is used by the refresh scheduler when enqueueing new episodes.
	DefaultPriority = 5

	// DefaultMaxAttempts is the default QueueEntry.MaxAttempts.
	DefaultMaxAttempts = 3

	// MinConcurrentDownloads and MaxConcurrentDownloads bound the worker pool size.
	MinConcurrentDownloads = 1
	MaxConcurrentDownloads = 10
)

// Channel is a monitored video-sharing source mirrored into the library.
type Channel struct {
	ID            string
	URL           string
	Title         string
	Description   string
	ThumbnailURL  string
	WindowSize    int
	FeedType      FeedType
	Enabled       bool
	LastRefreshAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Slug derives the filesystem-safe identifier used in on-disk paths and
// enclosure URLs: lowercased, non-alphanumeric runs collapsed to '-',
// trimmed, capped at 50 characters.
func (c Channel) Slug() string {
	return Slugify(c.Title)
}

// Episode is a single video being mirrored into the library.
type Episode struct {
	ID             string
	ChannelID      string
	VideoID        string
	Title          string
	Description    string
	ThumbnailURL   string
	DurationSec    *int64
	PublishedAt    *time.Time
	DownloadedAt   *time.Time
	FilePathAudio  *string
	FilePathVideo  *string
	FileSizeAudio  *int64
	FileSizeVideo  *int64
	Status         EpisodeStatus
	RetryCount     int
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasCompletedFile reports whether the episode satisfies invariant I2: at
// least one file path is set with a positive matching size.
func (e Episode) HasCompletedFile() bool {
	if e.FilePathAudio != nil && e.FileSizeAudio != nil && *e.FileSizeAudio > 0 {
		return true
	}
	if e.FilePathVideo != nil && e.FileSizeVideo != nil && *e.FileSizeVideo > 0 {
		return true
	}
	return false
}

// QueueEntry is the work item driving an Episode through download+transcode.
type QueueEntry struct {
	ID          string
	EpisodeID   string
	Priority    int
	Status      QueueStatus
	Attempts    int
	MaxAttempts int
	LastError   *string
	NextRetryAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
