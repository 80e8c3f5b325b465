package endpoints

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"channelcast/internal/apierr"
)

// RequestID stamps every request with an identifier surfaced in error
// bodies and logs, so an operator can correlate a client-visible failure
// with the matching server-side log line.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// writeError renders err as the uniform {error: {...}} envelope (§6/§7),
// wrapping any error that isn't already an *apierr.APIError as INTERNAL_ERROR.
func writeError(c *gin.Context, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Internal(err)
	}

	body := gin.H{
		"code":       apiErr.Code,
		"message":    apiErr.Message,
		"request_id": c.GetString("request_id"),
	}
	if apiErr.Details != "" {
		body["details"] = apiErr.Details
	}
	if apiErr.Field != "" {
		body["field"] = apiErr.Field
	}

	c.JSON(apiErr.Code.HTTPStatus(), gin.H{"error": body})
	c.Abort()
}
