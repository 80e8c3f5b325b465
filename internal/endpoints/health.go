package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"channelcast/internal/model"
	"channelcast/internal/store"
)

// HandleHealth reports unauthenticated liveness.
//
// @Summary  Liveness check
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /api/v1/health [get]
func HandleHealth(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"version":   d.Version,
			"timestamp": time.Now().UTC(),
		})
	}
}

// HandleStatus aggregates channel/episode/queue counts plus storage usage,
// the most recent refresh time and the configured poll interval.
//
// @Summary  Aggregate system status
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/status [get]
func HandleStatus(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		channels, err := d.Store.ListChannels(ctx, store.ChannelFilter{})
		if err != nil {
			writeError(c, err)
			return
		}
		enabled, disabled := 0, 0
		var lastRefresh *time.Time
		for _, ch := range channels {
			if ch.Enabled {
				enabled++
			} else {
				disabled++
			}
			if ch.LastRefreshAt != nil && (lastRefresh == nil || ch.LastRefreshAt.After(*lastRefresh)) {
				lastRefresh = ch.LastRefreshAt
			}
		}

		episodeCounts := map[model.EpisodeStatus]int{}
		var storageUsageBytes int64
		for _, status := range []model.EpisodeStatus{
			model.EpisodePending, model.EpisodeDownloading, model.EpisodeProcessing,
			model.EpisodeCompleted, model.EpisodeFailed, model.EpisodeDeleted,
		} {
			eps, err := d.Store.ListEpisodes(ctx, store.EpisodeFilter{Status: status})
			if err != nil {
				writeError(c, err)
				return
			}
			episodeCounts[status] = len(eps)
			for _, ep := range eps {
				if ep.FileSizeAudio != nil {
					storageUsageBytes += *ep.FileSizeAudio
				}
				if ep.FileSizeVideo != nil {
					storageUsageBytes += *ep.FileSizeVideo
				}
			}
		}

		queueCounts, err := d.Store.CountQueueByStatus(ctx)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"channels": gin.H{
				"enabled":  enabled,
				"disabled": disabled,
				"total":    len(channels),
			},
			"episodes":            episodeCounts,
			"queue":               queueCounts,
			"storage_root":        d.DataDir,
			"storage_usage_bytes": storageUsageBytes,
			"last_refresh":        lastRefresh,
			"next_poll_in":        d.Refresh.PollInterval().String(),
		})
	}
}

// HandleQueue returns queue counts plus the in-progress and failed entries,
// including last_error/attempts/max_attempts for operator triage.
//
// @Summary  Queue summary
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/queue [get]
func HandleQueue(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		counts, err := d.Store.CountQueueByStatus(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		inProgress, err := d.Store.ListQueueByStatus(ctx, model.QueueInProgress, 100)
		if err != nil {
			writeError(c, err)
			return
		}
		failed, err := d.Store.ListQueueByStatus(ctx, model.QueueFailed, 100)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"counts":      counts,
			"in_progress": toQueueEntryDTOs(inProgress),
			"failed":      toQueueEntryDTOs(failed),
		})
	}
}
