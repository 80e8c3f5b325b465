package endpoints

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"channelcast/internal/apierr"
	"channelcast/internal/feed"
	"channelcast/internal/model"
	"channelcast/internal/store"
)

// serveFeedBody writes a rendered feed document with ETag/Last-Modified/
// Cache-Control, honoring If-None-Match and If-Modified-Since for
// conditional requests per §6.
func serveFeedBody(c *gin.Context, contentType string, body []byte, etag string, lastModified time.Time) {
	c.Header("ETag", etag)
	c.Header("Last-Modified", lastModified.Format(http.TimeFormat))
	c.Header("Cache-Control", "public, max-age=300")

	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	if since := c.GetHeader("If-Modified-Since"); since != "" {
		if t, err := http.ParseTime(since); err == nil && !lastModified.Truncate(time.Second).After(t) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	c.Data(http.StatusOK, contentType, body)
}

// HandleChannelFeed serves /feed/<channel_id>/audio.rss|video.rss|atom.xml.
func HandleChannelFeed(d *Deps, variant feed.Variant, atom bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID := c.Param("channel_id")

		var body []byte
		var contentType, etag string
		var lastModified time.Time
		var err error

		if atom {
			body, contentType, etag, lastModified, err = d.Feed.Atom(c.Request.Context(), channelID, variant)
		} else {
			body, contentType, etag, lastModified, err = d.Feed.RSS(c.Request.Context(), channelID, variant)
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(c, apierr.NotFound("channel not found"))
				return
			}
			writeError(c, err)
			return
		}

		serveFeedBody(c, contentType, body, etag, lastModified)
	}
}

// HandleCombinedFeed serves /feeds/all.rss and /feeds/all-video.rss.
func HandleCombinedFeed(d *Deps, variant feed.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, contentType, etag, lastModified, err := d.Feed.CombinedRSS(c.Request.Context(), variant)
		if err != nil {
			writeError(c, err)
			return
		}
		serveFeedBody(c, contentType, body, etag, lastModified)
	}
}

// HandleMediaFile serves /feeds/<channel_slug>/{audio|video}/<filename>, the
// files referenced by feed enclosures, looked up by matching the channel
// slug rather than trusting the path directly.
//
// @Summary  Serve a media file
// @Router   /feeds/{channel_slug}/{kind}/{filename} [get]
func HandleMediaFile(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("channel_slug")
		kind := c.Param("kind")
		filename := c.Param("filename")
		if kind != "audio" && kind != "video" {
			writeError(c, apierr.NotFound("not found"))
			return
		}
		if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
			writeError(c, apierr.Validation("invalid filename", "filename"))
			return
		}

		ctx := c.Request.Context()
		channels, err := d.Store.ListChannels(ctx, store.ChannelFilter{})
		if err != nil {
			writeError(c, err)
			return
		}
		var match *model.Channel
		for _, ch := range channels {
			if ch.Slug() == slug {
				match = ch
				break
			}
		}
		if match == nil {
			writeError(c, apierr.NotFound("channel not found"))
			return
		}

		path := filepath.Join(d.DataDir, slug, kind, filename)
		c.File(path)
	}
}
