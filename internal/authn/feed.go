package authn

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"channelcast/internal/apierr"
)

// FeedBasicAuth builds a gin middleware enforcing HTTP Basic auth for the
// feed/media endpoints, a separate credential space from the admin API's
// JWT bearer tokens per §6. An empty username disables the check entirely
// (feeds served unauthenticated), matching a common deployment where feeds
// are only reachable inside a private network.
func FeedBasicAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if username == "" {
			c.Next()
			return
		}

		user, pass, ok := c.Request.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="channelcast-feeds"`)
			abortJSON(c, apierr.Unauthorized("invalid feed credentials"))
			return
		}
		c.Next()
	}
}
