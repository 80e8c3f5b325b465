// Package authn provides the two authentication schemes the HTTP surface
// needs: JWT bearer validation for the admin/management API, and HTTP Basic
// for the feed endpoints, each with its own credential space per §6.
//
// The JWKS-caching-provider + validator wiring is lifted near-verbatim from
// the teacher's internal/endpoints/middleware.go + internal/auth/auth0.go,
// generalized to a standalone gin.HandlerFunc constructor instead of a
// package-level function that reaches into global config.
package authn

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"

	"channelcast/internal/apierr"
)

// AdminAuthConfig configures the admin API's JWT validation.
type AdminAuthConfig struct {
	Domain   string
	Audience string
}

// AdminJWT builds a gin middleware validating RS256 bearer tokens against
// the tenant's JWKS endpoint, cached for 24h per the teacher's pattern.
func AdminJWT(cfg AdminAuthConfig) (gin.HandlerFunc, error) {
	issuerURL, err := url.Parse(fmt.Sprintf("https://%s/", cfg.Domain))
	if err != nil {
		return nil, fmt.Errorf("authn: parse issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 24*time.Hour)
	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Audience},
	)
	if err != nil {
		return nil, fmt.Errorf("authn: build validator: %w", err)
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortJSON(c, apierr.Unauthorized("missing authorization header"))
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			abortJSON(c, apierr.Unauthorized("invalid authorization header format"))
			return
		}

		if _, err := jwtValidator.ValidateToken(c.Request.Context(), token); err != nil {
			slog.Warn("admin token validation failed", "error", err, "request_id", c.GetString("request_id"))
			abortJSON(c, apierr.Unauthorized("invalid or expired token"))
			return
		}

		c.Next()
	}, nil
}

func abortJSON(c *gin.Context, e *apierr.APIError) {
	c.JSON(e.Code.HTTPStatus(), gin.H{"error": gin.H{
		"code":       e.Code,
		"message":    e.Message,
		"request_id": c.GetString("request_id"),
	}})
	c.Abort()
}
