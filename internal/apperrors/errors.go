// Package apperrors defines the error taxonomy surfaced through the HTTP
// response envelope. Handlers translate repository and collaborator
// failures into one of these kinds; the envelope writer is the single
// point where a kind becomes an HTTP status.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies a request failure.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindNotFound
	KindConflict
	KindRateLimited
	KindUpstream
	KindInternal
)

// Error is a classified failure carrying a caller-safe message. The wrapped
// cause is for logs only and is never serialized.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the kind to its response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// BadRequest flags malformed or missing input.
func BadRequest(message string, details ...string) *Error {
	return &Error{Kind: KindBadRequest, Message: message, Details: details}
}

// Unauthorized flags missing/invalid credentials or an ownership mismatch.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NotFound flags an absent entity.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict flags a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// RateLimited flags a caller exceeding the request budget for an endpoint.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// Upstream flags a failed remote collaborator call.
func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, cause: cause}
}

// Internal flags an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// As extracts a classified error from err, or wraps it as Internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}
