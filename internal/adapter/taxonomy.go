// Package adapter holds the failure taxonomy shared by the Extractor and
// Transcoder process-invocation adapters (C2), plus the circuit-breaker
// wiring common to both.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Kind is one of the fixed failure classifications both adapters report.
// Callers branch retry policy on Kind alone and never parse stderr.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindTransient   Kind = "transient_network"
	KindToolFailure Kind = "tool_failure"
	KindTimeout     Kind = "timeout"
)

// Retryable reports whether the worker pool's retry policy should count
// this failure against max_attempts, per §4.4.4's classification table.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransient, KindToolFailure, KindTimeout:
		return true
	case KindNotFound, KindForbidden:
		return false
	default:
		return true
	}
}

// Error is the tagged error both adapters return on failure.
type Error struct {
	Kind   Kind
	Op     string // "list_channel_videos", "to_audio", etc.
	Output string // captured stdout+stderr, truncated, for diagnosis
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %s: %v (output: %s)", e.Op, e.Kind, e.Err, truncate(e.Output, 500))
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Classify inspects a process-invocation error plus its captured output and
// assigns a Kind. Exit-code-aware tools may override specific codes by
// checking err for *exec.ExitError before falling back to this heuristic.
func Classify(op string, err error, output []byte) *Error {
	out := string(output)
	lower := strings.ToLower(out)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Output: out, Err: err}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found") || strings.Contains(lower, "video unavailable"):
		return &Error{Kind: KindNotFound, Op: op, Output: out, Err: err}
	case strings.Contains(lower, "private") || strings.Contains(lower, "forbidden") || strings.Contains(lower, "403"):
		return &Error{Kind: KindForbidden, Op: op, Output: out, Err: err}
	case strings.Contains(lower, "network") || strings.Contains(lower, "timed out") || strings.Contains(lower, "connection reset") || strings.Contains(lower, "temporary failure"):
		return &Error{Kind: KindTransient, Op: op, Output: out, Err: err}
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Error{Kind: KindToolFailure, Op: op, Output: out, Err: err}
		}
		return &Error{Kind: KindTransient, Op: op, Output: out, Err: err}
	}
}

// Breaker wraps adapter invocations with a circuit breaker so a repeatedly
// failing external tool (binary missing, upstream outage) fails fast
// instead of letting every worker block out its full per-call timeout.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker builds a breaker that opens after 5 consecutive failures and
// probes again after 30s in the half-open state.
func NewBreaker(name string) *Breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[[]byte](st)}
}

// Do runs fn through the breaker. A *Error from fn is not considered a
// breaker-tripping failure when its Kind is KindNotFound or KindForbidden —
// those are upstream content states, not tool health signals — but the
// original error is still returned to the caller.
func (b *Breaker) Do(fn func() ([]byte, error)) ([]byte, error) {
	var realErr error
	out, err := b.cb.Execute(func() ([]byte, error) {
		out, fnErr := fn()
		realErr = fnErr
		if fnErr == nil {
			return out, nil
		}
		if ae, ok := As(fnErr); ok && (ae.Kind == KindNotFound || ae.Kind == KindForbidden) {
			return out, nil // don't trip the breaker on content-level misses
		}
		return out, fnErr
	})
	if realErr != nil {
		return out, realErr
	}
	return out, err
}
