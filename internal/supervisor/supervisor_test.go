package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunc_ServeDelegatesToWrappedFunc(t *testing.T) {
	called := false
	svc := Func(func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.NoError(t, svc.Serve(context.Background()))
	assert.True(t, called)
}

func TestFunc_ServePropagatesError(t *testing.T) {
	want := errors.New("boom")
	svc := Func(func(ctx context.Context) error { return want })

	assert.ErrorIs(t, svc.Serve(context.Background()), want)
}

func TestNew_ReturnsNonNilSupervisor(t *testing.T) {
	sup := New("test-supervisor")
	assert.NotNil(t, sup)
}
