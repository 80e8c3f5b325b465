// Package apierr defines the typed error kinds that flow out of the core
// (§7 of the specification) and the wire error envelope the HTTP layer maps
// them to.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the fixed wire error codes the HTTP layer may emit.
type Code string

const (
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeConflict         Code = "CONFLICT"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeUnavailable      Code = "SERVICE_UNAVAILABLE"
)

// HTTPStatus maps a wire code to its status line.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeConflict:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the typed error carried from domain code to the HTTP layer.
type APIError struct {
	Code    Code
	Message string
	Details string
	Field   string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func newErr(code Code, msg string) *APIError {
	return &APIError{Code: code, Message: msg}
}

// NotFound builds a 404 APIError.
func NotFound(msg string) *APIError { return newErr(CodeNotFound, msg) }

// Conflict builds a 409 APIError.
func Conflict(msg string) *APIError { return newErr(CodeConflict, msg) }

// Validation builds a 400 APIError, optionally naming the offending field.
func Validation(msg, field string) *APIError {
	e := newErr(CodeValidation, msg)
	e.Field = field
	return e
}

// Internal wraps an unexpected error as a 500 APIError.
func Internal(err error) *APIError {
	return &APIError{Code: CodeInternal, Message: "internal error", Err: err}
}

// Unauthorized builds a 401 APIError.
func Unauthorized(msg string) *APIError { return newErr(CodeUnauthorized, msg) }

// RateLimited builds a 429 APIError.
func RateLimited(msg string) *APIError { return newErr(CodeRateLimited, msg) }

// As is a thin wrapper over errors.As for *APIError, used by handlers to
// decide whether a domain error already carries a wire shape.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
