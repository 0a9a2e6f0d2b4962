// Package apperr defines the typed error vocabulary shared by all handlers
// and services. Each error carries a stable wire code and the HTTP status it
// maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error without changing the wire shape.
func (e *Error) WithCause(err error) *Error {
	clone := *e
	clone.cause = err
	return &clone
}

// Withf overrides the public message.
func (e *Error) Withf(format string, args ...any) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

func newErr(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// Authentication
var (
	ErrInvalidSignature = newErr("INVALID_SIGNATURE", http.StatusUnauthorized, "signature verification failed")
	ErrTokenExpired     = newErr("TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired")
	ErrUnauthorized     = newErr("UNAUTHORIZED", http.StatusUnauthorized, "authentication required")
)

// Validation
var (
	ErrValidation      = newErr("VALIDATION_ERROR", http.StatusBadRequest, "invalid request")
	ErrInvalidLocation = newErr("INVALID_LOCATION", http.StatusBadRequest, "invalid location")
	ErrBadRequest      = newErr("BAD_REQUEST", http.StatusBadRequest, "bad request")
)

// Policy
var (
	ErrTooFar         = newErr("TOO_FAR", http.StatusForbidden, "too far from target")
	ErrSpeedViolation = newErr("SPEED_VIOLATION", http.StatusForbidden, "movement speed exceeds limit")
	ErrCooldown       = newErr("COOLDOWN", http.StatusForbidden, "capture cooldown active")
	ErrForbidden      = newErr("FORBIDDEN", http.StatusForbidden, "forbidden")
)

// Domain state
var (
	ErrTitanNotFound   = newErr("TITAN_NOT_FOUND", http.StatusNotFound, "titan not found")
	ErrAlreadyCaptured = newErr("ALREADY_CAPTURED", http.StatusConflict, "titan has no captures remaining")
	ErrTitanExpired    = newErr("TITAN_EXPIRED", http.StatusGone, "titan has expired")
	ErrPlayerNotFound  = newErr("PLAYER_NOT_FOUND", http.StatusNotFound, "player not found")
	ErrNotFound        = newErr("NOT_FOUND", http.StatusNotFound, "not found")
)

// Infrastructure. Details are logged server-side; the wire message stays
// generic per the propagation policy.
var (
	ErrDatabase           = newErr("DATABASE_ERROR", http.StatusInternalServerError, "database error")
	ErrCache              = newErr("CACHE_ERROR", http.StatusInternalServerError, "cache error")
	ErrInternal           = newErr("INTERNAL_ERROR", http.StatusInternalServerError, "internal error")
	ErrServiceUnavailable = newErr("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable")
)

// From extracts the typed error, or wraps unknown errors as internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return ErrInternal.WithCause(err)
}

// Is reports whether err carries the same wire code as target.
func Is(err error, target *Error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == target.Code
	}
	return false
}
