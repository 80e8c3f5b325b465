package endpoints

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"channelcast/internal/apierr"
	"channelcast/internal/model"
	"channelcast/internal/refresh"
	"channelcast/internal/store"
)

type createChannelRequest struct {
	URL        string `json:"url" binding:"required"`
	Title      string `json:"title"`
	WindowSize int    `json:"window_size"`
	FeedType   string `json:"feed_type"`
	Enabled    *bool  `json:"enabled"`
}

// HandleListChannels lists channels, optionally filtered by ?enabled=.
//
// @Summary  List channels
// @Produce  json
// @Router   /api/v1/channels [get]
func HandleListChannels(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.ChannelFilter{}
		if v := c.Query("enabled"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(c, apierr.Validation("enabled must be a boolean", "enabled"))
				return
			}
			f.Enabled = &b
		}

		channels, err := d.Store.ListChannels(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"channels": toChannelDTOs(channels)})
	}
}

// HandleCreateChannel creates a channel, validating the URL and rejecting
// duplicates with 409.
//
// @Summary  Create a channel
// @Accept   json
// @Produce  json
// @Router   /api/v1/channels [post]
func HandleCreateChannel(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createChannelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apierr.Validation(err.Error(), ""))
			return
		}
		if _, err := url.ParseRequestURI(req.URL); err != nil {
			writeError(c, apierr.Validation("url is not a valid URL", "url"))
			return
		}

		ch := &model.Channel{
			ID:         uuid.NewString(),
			URL:        req.URL,
			Title:      req.Title,
			WindowSize: req.WindowSize,
			FeedType:   model.FeedType(req.FeedType),
			Enabled:    true,
		}
		if req.Enabled != nil {
			ch.Enabled = *req.Enabled
		}

		if err := d.Store.CreateChannel(c.Request.Context(), ch); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				writeError(c, apierr.Conflict("a channel with this url already exists"))
				return
			}
			if errors.Is(err, store.ErrInvariant) {
				writeError(c, apierr.Validation(err.Error(), ""))
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toChannelDTO(ch))
	}
}

// HandleGetChannel fetches a single channel by id.
//
// @Summary  Get a channel
// @Produce  json
// @Router   /api/v1/channels/{id} [get]
func HandleGetChannel(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, err := d.Store.GetChannel(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, mapNotFound(err, "channel not found"))
			return
		}
		c.JSON(http.StatusOK, toChannelDTO(ch))
	}
}

type updateChannelRequest struct {
	Title      *string `json:"title"`
	WindowSize *int    `json:"window_size"`
	FeedType   *string `json:"feed_type"`
	Enabled    *bool   `json:"enabled"`
}

// HandleUpdateChannel patches mutable channel fields.
//
// @Summary  Update a channel
// @Accept   json
// @Produce  json
// @Router   /api/v1/channels/{id} [patch]
func HandleUpdateChannel(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ch, err := d.Store.GetChannel(ctx, c.Param("id"))
		if err != nil {
			writeError(c, mapNotFound(err, "channel not found"))
			return
		}

		var req updateChannelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apierr.Validation(err.Error(), ""))
			return
		}
		if req.Title != nil {
			ch.Title = *req.Title
		}
		if req.WindowSize != nil {
			ch.WindowSize = *req.WindowSize
		}
		if req.FeedType != nil {
			ch.FeedType = model.FeedType(*req.FeedType)
		}
		if req.Enabled != nil {
			ch.Enabled = *req.Enabled
		}

		if err := d.Store.UpdateChannel(ctx, ch); err != nil {
			if errors.Is(err, store.ErrInvariant) {
				writeError(c, apierr.Validation(err.Error(), ""))
				return
			}
			writeError(c, err)
			return
		}
		d.Feed.Invalidate(ch.ID)
		c.JSON(http.StatusOK, toChannelDTO(ch))
	}
}

// HandleDeleteChannel evicts the media files of the channel's completed
// episodes, then removes the channel and, via foreign-key cascade, its
// episodes and queue entries.
//
// @Summary  Delete a channel
// @Router   /api/v1/channels/{id} [delete]
func HandleDeleteChannel(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")
		completed, err := d.Store.ListEpisodes(ctx, store.EpisodeFilter{ChannelID: id, Status: model.EpisodeCompleted})
		if err != nil {
			writeError(c, err)
			return
		}
		for _, ep := range completed {
			if err := d.Retention.EvictEpisode(ctx, ep.ID); err != nil {
				writeError(c, err)
				return
			}
		}
		if err := d.Store.DeleteChannel(ctx, id); err != nil {
			writeError(c, mapNotFound(err, "channel not found"))
			return
		}
		d.Feed.Invalidate(id)
		c.Status(http.StatusNoContent)
	}
}

// HandleRefreshChannel triggers an on-demand C3 refresh for one channel.
//
// @Summary  Trigger a channel refresh
// @Produce  json
// @Router   /api/v1/channels/{id}/refresh [post]
func HandleRefreshChannel(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := d.Refresh.RefreshChannel(c.Request.Context(), c.Param("id"), true)
		if result.Err != nil {
			writeError(c, result.Err)
			return
		}
		c.JSON(http.StatusOK, refreshResultDTO(result))
	}
}

// HandleRefreshAll triggers an on-demand C3 refresh for every enabled
// channel.
//
// @Summary  Trigger a refresh of all channels
// @Produce  json
// @Router   /api/v1/refresh-all [post]
func HandleRefreshAll(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := d.Refresh.RefreshAll(c.Request.Context(), true)
		dtos := make([]gin.H, 0, len(results))
		for _, r := range results {
			dtos = append(dtos, refreshResultDTO(r))
		}
		c.JSON(http.StatusOK, gin.H{"results": dtos})
	}
}

func refreshResultDTO(r refresh.Result) gin.H {
	body := gin.H{
		"channel_id":      r.ChannelID,
		"videos_seen":     r.VideosSeen,
		"episodes_new":    r.EpisodesNew,
		"episodes_queued": r.EpisodesQueued,
		"completed_at":    r.CompletedAt,
	}
	if r.Err != nil {
		body["error"] = r.Err.Error()
	}
	return body
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound(msg)
	}
	return err
}
