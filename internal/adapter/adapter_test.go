package adapter

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Classify("op", nil, nil))
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	e := Classify("list_channel_videos", context.DeadlineExceeded, nil)
	require.NotNil(t, e)
	assert.Equal(t, KindTimeout, e.Kind)
	assert.True(t, e.Kind.Retryable())
}

func TestClassify_NotFoundFromOutput(t *testing.T) {
	e := Classify("to_audio", errors.New("exit status 1"), []byte("ERROR: Video unavailable"))
	require.NotNil(t, e)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.False(t, e.Kind.Retryable())
}

func TestClassify_ForbiddenFromOutput(t *testing.T) {
	e := Classify("to_audio", errors.New("exit status 1"), []byte("HTTP Error 403: Forbidden"))
	require.NotNil(t, e)
	assert.Equal(t, KindForbidden, e.Kind)
	assert.False(t, e.Kind.Retryable())
}

func TestClassify_TransientFromOutput(t *testing.T) {
	e := Classify("to_audio", errors.New("exit status 1"), []byte("connection reset by peer"))
	require.NotNil(t, e)
	assert.Equal(t, KindTransient, e.Kind)
	assert.True(t, e.Kind.Retryable())
}

func TestClassify_ToolFailureOnExitError(t *testing.T) {
	_, lookErr := exec.LookPath("definitely-not-a-real-binary-xyz")
	require.Error(t, lookErr)

	cmd := exec.Command("false")
	runErr := cmd.Run()
	require.Error(t, runErr)

	e := Classify("to_audio", runErr, []byte("some unrelated tool output"))
	require.NotNil(t, e)
	assert.Equal(t, KindToolFailure, e.Kind)
	assert.True(t, e.Kind.Retryable())
}

func TestError_UnwrapAndAs(t *testing.T) {
	wrapped := errors.New("boom")
	e := &Error{Kind: KindTransient, Op: "to_audio", Err: wrapped}

	assert.ErrorIs(t, e, wrapped)

	got, ok := As(e)
	require.True(t, ok)
	assert.Equal(t, KindTransient, got.Kind)
}

func TestBreaker_DoesNotTripOnNotFound(t *testing.T) {
	b := NewBreaker("test-not-found")

	for i := 0; i < 10; i++ {
		_, err := b.Do(func() ([]byte, error) {
			return nil, &Error{Kind: KindNotFound, Op: "to_audio", Err: errors.New("video unavailable")}
		})
		require.Error(t, err)
	}

	// The breaker should still be closed: a real transient failure should
	// run through Execute rather than failing fast with ErrOpenState.
	_, err := b.Do(func() ([]byte, error) {
		return nil, &Error{Kind: KindTransient, Op: "to_audio", Err: errors.New("network blip")}
	})
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindTransient, ae.Kind)
}

func TestBreaker_TripsOnConsecutiveTransientFailures(t *testing.T) {
	b := NewBreaker("test-trip")

	for i := 0; i < 5; i++ {
		_, err := b.Do(func() ([]byte, error) {
			return nil, &Error{Kind: KindTransient, Op: "to_audio", Err: errors.New("network blip")}
		})
		require.Error(t, err)
	}

	_, err := b.Do(func() ([]byte, error) {
		return []byte("ok"), nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	_ = time.Second // breaker half-opens after 30s; not exercised here
}
