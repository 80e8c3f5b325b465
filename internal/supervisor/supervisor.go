// Package supervisor wires the refresh scheduler, worker pool, retention
// sweeper and HTTP server together as a suture.Supervisor tree (§5): each
// runs as an independently restarting service inside a single process,
// rather than the teacher's split cmd/http + cmd/worker binaries.
package supervisor

import (
	"context"
	"log/slog"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Service is anything suture can supervise: a blocking Serve that returns
// when ctx is cancelled (or on unrecoverable error, triggering a restart).
type Service = suture.Service

// serviceFunc adapts a bare func(ctx) error into a suture.Service.
type serviceFunc func(ctx context.Context) error

func (f serviceFunc) Serve(ctx context.Context) error { return f(ctx) }

// Func wraps fn as a suture.Service.
func Func(fn func(ctx context.Context) error) Service {
	return serviceFunc(fn)
}

// New builds a suture.Supervisor that logs lifecycle events through
// log/slog via sutureslog, matching the rest of the application's logging.
func New(name string) *suture.Supervisor {
	logHandler := sutureslog.Handler{Logger: slog.Default()}
	return suture.New(name, suture.Spec{
		EventHook: logHandler.MustHook(),
	})
}
