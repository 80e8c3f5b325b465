// Package server wraps the gin HTTP server as a suture.Service: Serve blocks
// until ctx is cancelled, then drains in-flight requests against a bounded
// deadline, adapted from the teacher's internal/server/server.go (which ran
// a bare http.Server with a queue.Queue attached) to the suture supervision
// model and the larger channel/episode/queue/feed route surface.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"channelcast/internal/endpoints"
	"channelcast/internal/ratelimit"
)

// ShutdownGrace bounds how long Serve waits for in-flight requests to drain
// once ctx is cancelled before forcing the listener closed.
const ShutdownGrace = 15 * time.Second

// Server wraps the HTTP server as a long-running suture.Service.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
}

// New builds a Server bound to addr, with routes registered from deps.
func New(addr string, deps *endpoints.Deps, admin gin.HandlerFunc, feedAuth gin.HandlerFunc, limiter *ratelimit.Limiter) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	endpoints.SetupRoutes(router, deps, admin, feedAuth, limiter)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Serve implements suture.Service: it blocks until ctx is cancelled, then
// gracefully shuts the listener down within ShutdownGrace.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()

	slog.Info("http server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
