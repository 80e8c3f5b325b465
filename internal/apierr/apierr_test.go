package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthorized:     http.StatusUnauthorized,
		CodeForbidden:        http.StatusForbidden,
		CodeNotFound:         http.StatusNotFound,
		CodeMethodNotAllowed: http.StatusMethodNotAllowed,
		CodeConflict:         http.StatusConflict,
		CodeValidation:       http.StatusBadRequest,
		CodeRateLimited:      http.StatusTooManyRequests,
		CodeUnavailable:      http.StatusServiceUnavailable,
		CodeInternal:         http.StatusInternalServerError,
		Code("SOMETHING_UNKNOWN"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), "code %s", code)
	}
}

func TestValidation_CarriesFieldName(t *testing.T) {
	err := Validation("must not be empty", "title")
	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, "title", err.Field)
}

func TestInternal_WrapsUnderlyingError(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)
	assert.Equal(t, CodeInternal, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestAs_UnwrapsWrappedAPIError(t *testing.T) {
	inner := NotFound("channel not found")
	wrapped := fmt.Errorf("refresh: get channel: %w", inner)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeNotFound, got.Code)
}

func TestAs_ReturnsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}
