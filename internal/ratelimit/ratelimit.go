// Package ratelimit applies the per-endpoint-class request limits from §6
// (reads 100/min, writes 30/min, trigger endpoints 10/min) using
// golang.org/x/time/rate token buckets, one per remote address per class.
package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"channelcast/internal/apierr"
)

// Class names an endpoint category with its own limit.
type Class string

const (
	ClassRead    Class = "read"
	ClassWrite   Class = "write"
	ClassTrigger Class = "trigger"
)

var classLimits = map[Class]rate.Limit{
	ClassRead:    rate.Limit(100.0 / 60.0),
	ClassWrite:   rate.Limit(30.0 / 60.0),
	ClassTrigger: rate.Limit(10.0 / 60.0),
}

var classBurst = map[Class]int{
	ClassRead:    100,
	ClassWrite:   30,
	ClassTrigger: 10,
}

// Limiter tracks one token bucket per (class, remote address).
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New builds an empty Limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*rate.Limiter)}
}

// Middleware returns a gin.HandlerFunc enforcing class's limit per client,
// setting X-RateLimit-Limit/Remaining/Reset on every response.
func (l *Limiter) Middleware(class Class) gin.HandlerFunc {
	limit := classLimits[class]
	burst := classBurst[class]

	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", class, c.ClientIP())
		b := l.bucket(key, limit, burst)

		// resetAt is the Unix time at which the bucket is back to a full burst.
		resetAt := func() string {
			missing := math.Max(0, float64(burst)-b.Tokens())
			wait := time.Duration(math.Ceil(missing/float64(limit))) * time.Second
			return fmt.Sprintf("%d", time.Now().Add(wait).Unix())
		}

		res := b.Reserve()
		if !res.OK() || res.Delay() > 0 {
			res.Cancel()
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", burst))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", resetAt())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
				"code":       apierr.CodeRateLimited,
				"message":    "rate limit exceeded",
				"request_id": c.GetString("request_id"),
			}})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", burst))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int(b.Tokens())))
		c.Header("X-RateLimit-Reset", resetAt())
		c.Next()
	}
}

func (l *Limiter) bucket(key string, limit rate.Limit, burst int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(limit, burst)
		l.buckets[key] = b
	}
	return b
}
