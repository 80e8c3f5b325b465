package endpoints

import (
	"github.com/gin-gonic/gin"

	"channelcast/internal/feed"
	"channelcast/internal/ratelimit"
)

// SetupRoutes registers the management API (§6) under /api/v1 and the feed
// and media endpoints under /feed and /feeds, generalizing the teacher's
// SetupRoutes (a single backup/jobs API) to the full channel/episode/queue/
// feed surface this specification requires.
func SetupRoutes(r *gin.Engine, d *Deps, admin gin.HandlerFunc, feedAuth gin.HandlerFunc, limiter *ratelimit.Limiter) {
	r.Use(RequestID())

	api := r.Group("/api/v1")
	{
		api.GET("/health", limiter.Middleware(ratelimit.ClassRead), HandleHealth(d))
		api.GET("/status", limiter.Middleware(ratelimit.ClassRead), admin, HandleStatus(d))
		api.GET("/queue", limiter.Middleware(ratelimit.ClassRead), admin, HandleQueue(d))

		channels := api.Group("/channels")
		channels.Use(admin)
		{
			channels.GET("", limiter.Middleware(ratelimit.ClassRead), HandleListChannels(d))
			channels.POST("", limiter.Middleware(ratelimit.ClassWrite), HandleCreateChannel(d))
			channels.GET("/:id", limiter.Middleware(ratelimit.ClassRead), HandleGetChannel(d))
			channels.PATCH("/:id", limiter.Middleware(ratelimit.ClassWrite), HandleUpdateChannel(d))
			channels.DELETE("/:id", limiter.Middleware(ratelimit.ClassWrite), HandleDeleteChannel(d))
			channels.POST("/:id/refresh", limiter.Middleware(ratelimit.ClassTrigger), HandleRefreshChannel(d))
		}

		api.POST("/refresh-all", limiter.Middleware(ratelimit.ClassTrigger), admin, HandleRefreshAll(d))

		episodes := api.Group("/episodes")
		episodes.Use(admin)
		{
			episodes.GET("", limiter.Middleware(ratelimit.ClassRead), HandleListEpisodes(d))
			episodes.GET("/:id", limiter.Middleware(ratelimit.ClassRead), HandleGetEpisode(d))
			episodes.DELETE("/:id", limiter.Middleware(ratelimit.ClassWrite), HandleDeleteEpisode(d))
			episodes.POST("/:id/retry", limiter.Middleware(ratelimit.ClassTrigger), HandleRetryEpisode(d))
		}
	}

	feeds := r.Group("/")
	feeds.Use(feedAuth, limiter.Middleware(ratelimit.ClassRead))
	{
		feeds.GET("/feed/:channel_id/audio.rss", HandleChannelFeed(d, feed.VariantAudio, false))
		feeds.GET("/feed/:channel_id/video.rss", HandleChannelFeed(d, feed.VariantVideo, false))
		feeds.GET("/feed/:channel_id/atom.xml", HandleChannelFeed(d, feed.VariantAudio, true))
		feeds.GET("/feeds/all.rss", HandleCombinedFeed(d, feed.VariantAudio))
		feeds.GET("/feeds/all-video.rss", HandleCombinedFeed(d, feed.VariantVideo))
		feeds.GET("/feeds/:channel_slug/:kind/:filename", HandleMediaFile(d))
	}
}
