package endpoints

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"channelcast/internal/apierr"
	"channelcast/internal/model"
	"channelcast/internal/store"
)

// HandleListEpisodes lists episodes, optionally filtered by ?channel_id= and
// ?status=.
//
// @Summary  List episodes
// @Produce  json
// @Router   /api/v1/episodes [get]
func HandleListEpisodes(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.EpisodeFilter{
			ChannelID: c.Query("channel_id"),
			Status:    model.EpisodeStatus(c.Query("status")),
		}
		episodes, err := d.Store.ListEpisodes(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"episodes": toEpisodeDTOs(episodes)})
	}
}

// HandleGetEpisode fetches a single episode by id.
//
// @Summary  Get an episode
// @Produce  json
// @Router   /api/v1/episodes/{id} [get]
func HandleGetEpisode(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ep, err := d.Store.GetEpisode(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, mapNotFound(err, "episode not found"))
			return
		}
		c.JSON(http.StatusOK, toEpisodeDTO(ep))
	}
}

// HandleDeleteEpisode deletes an episode, rejecting the delete while the
// episode is actively being worked (409).
//
// @Summary  Delete an episode
// @Router   /api/v1/episodes/{id} [delete]
func HandleDeleteEpisode(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ep, err := d.Store.GetEpisode(ctx, c.Param("id"))
		if err != nil {
			writeError(c, mapNotFound(err, "episode not found"))
			return
		}
		if ep.Status == model.EpisodeDownloading || ep.Status == model.EpisodeProcessing {
			writeError(c, apierr.Conflict("episode is actively being downloaded or processed"))
			return
		}

		if ep.Status == model.EpisodeCompleted {
			if err := d.Retention.EvictEpisode(ctx, ep.ID); err != nil {
				writeError(c, err)
				return
			}
		}
		if err := d.Store.DeleteEpisode(ctx, ep.ID); err != nil {
			writeError(c, mapNotFound(err, "episode not found"))
			return
		}
		d.Feed.Invalidate(ep.ChannelID)
		c.Status(http.StatusNoContent)
	}
}

// HandleRetryEpisode resets a terminally failed episode back to pending,
// per the manual-retry contract: attempts reset to 0, next_retry_at
// cleared. 409 if the episode isn't in the failed state.
//
// @Summary  Retry a failed episode
// @Produce  json
// @Router   /api/v1/episodes/{id}/retry [post]
func HandleRetryEpisode(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ep, err := d.Store.GetEpisode(ctx, c.Param("id"))
		if err != nil {
			writeError(c, mapNotFound(err, "episode not found"))
			return
		}
		if ep.Status != model.EpisodeFailed {
			writeError(c, apierr.Conflict("episode is not in a failed state"))
			return
		}

		if err := d.Store.ResetForManualRetry(ctx, ep.ID); err != nil {
			if errors.Is(err, store.ErrInvariant) {
				writeError(c, apierr.Conflict("episode is not in a failed state"))
				return
			}
			writeError(c, err)
			return
		}

		ep, err = d.Store.GetEpisode(ctx, ep.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toEpisodeDTO(ep))
	}
}
