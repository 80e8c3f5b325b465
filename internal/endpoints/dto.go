package endpoints

import (
	"time"

	"channelcast/internal/model"
)

// channelDTO is the wire shape for a Channel; model.Channel carries no json
// tags since it's the Store's internal representation, not a wire contract.
type channelDTO struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
	Slug          string     `json:"slug"`
	WindowSize    int        `json:"window_size"`
	FeedType      string     `json:"feed_type"`
	Enabled       bool       `json:"enabled"`
	LastRefreshAt *time.Time `json:"last_refresh_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toChannelDTO(c *model.Channel) channelDTO {
	return channelDTO{
		ID:            c.ID,
		URL:           c.URL,
		Title:         c.Title,
		Description:   c.Description,
		ThumbnailURL:  c.ThumbnailURL,
		Slug:          c.Slug(),
		WindowSize:    c.WindowSize,
		FeedType:      string(c.FeedType),
		Enabled:       c.Enabled,
		LastRefreshAt: c.LastRefreshAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toChannelDTOs(cs []*model.Channel) []channelDTO {
	out := make([]channelDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, toChannelDTO(c))
	}
	return out
}

type episodeDTO struct {
	ID            string     `json:"id"`
	ChannelID     string     `json:"channel_id"`
	VideoID       string     `json:"video_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
	DurationSec   *int64     `json:"duration_sec,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	DownloadedAt  *time.Time `json:"downloaded_at,omitempty"`
	FileSizeAudio *int64     `json:"file_size_audio,omitempty"`
	FileSizeVideo *int64     `json:"file_size_video,omitempty"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toEpisodeDTO(e *model.Episode) episodeDTO {
	return episodeDTO{
		ID:            e.ID,
		ChannelID:     e.ChannelID,
		VideoID:       e.VideoID,
		Title:         e.Title,
		Description:   e.Description,
		ThumbnailURL:  e.ThumbnailURL,
		DurationSec:   e.DurationSec,
		PublishedAt:   e.PublishedAt,
		DownloadedAt:  e.DownloadedAt,
		FileSizeAudio: e.FileSizeAudio,
		FileSizeVideo: e.FileSizeVideo,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		ErrorMessage:  e.ErrorMessage,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toEpisodeDTOs(es []*model.Episode) []episodeDTO {
	out := make([]episodeDTO, 0, len(es))
	for _, e := range es {
		out = append(out, toEpisodeDTO(e))
	}
	return out
}

type queueEntryDTO struct {
	ID          string     `json:"id"`
	EpisodeID   string     `json:"episode_id"`
	Priority    int        `json:"priority"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   *string    `json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toQueueEntryDTO(q *model.QueueEntry) queueEntryDTO {
	return queueEntryDTO{
		ID:          q.ID,
		EpisodeID:   q.EpisodeID,
		Priority:    q.Priority,
		Status:      string(q.Status),
		Attempts:    q.Attempts,
		MaxAttempts: q.MaxAttempts,
		LastError:   q.LastError,
		NextRetryAt: q.NextRetryAt,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}

func toQueueEntryDTOs(qs []*model.QueueEntry) []queueEntryDTO {
	out := make([]queueEntryDTO, 0, len(qs))
	for _, q := range qs {
		out = append(out, toQueueEntryDTO(q))
	}
	return out
}
