// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrAuth            = errors.New("events api authentication failed")
	ErrMissingAPIKey   = errors.New("events api key not configured")
	ErrRateLimited     = errors.New("rate limited")
	ErrTransport       = errors.New("transport failure")
	ErrMalformedRecord = errors.New("malformed record")
	ErrDateParse       = errors.New("date parse failed")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrNotFound        = errors.New("not found")
	ErrNoUsableEvents  = errors.New("no record carried a usable event id")
)

// AuthError is returned when the API rejects or lacks credentials.
// It is never retried.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth error [%d]: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("auth error: %s", e.Message)
}

func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuth, e.Err}
	}
	return []error{ErrAuth}
}

// NewAuthError creates a new AuthError.
func NewAuthError(status int, message string, err error) *AuthError {
	return &AuthError{StatusCode: status, Message: message, Err: err}
}

// RateLimitError is returned on HTTP 429. RetryAfter carries the backoff
// suggested by the server, or zero when none was given.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("rate limited: %s", e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(retryAfter time.Duration, message string) *RateLimitError {
	return &RateLimitError{RetryAfter: retryAfter, Message: message}
}

// TransportError covers network failures, timeouts and upstream 5xx.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error [%s] status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error [%s]: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransport, e.Err}
	}
	return []error{ErrTransport}
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, StatusCode: status, Err: err}
}

// MalformedRecordError describes a record that was skipped during
// normalization.
type MalformedRecordError struct {
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record #%d: %s", e.Index, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// NewMalformedRecordError creates a new MalformedRecordError.
func NewMalformedRecordError(index int, reason string) *MalformedRecordError {
	return &MalformedRecordError{Index: index, Reason: reason}
}

// DateParseWarning is a per-field, non-fatal parse failure.
type DateParseWarning struct {
	EventID string
	Field   string
	Value   string
}

func (e *DateParseWarning) Error() string {
	return fmt.Sprintf("event %s: cannot parse %s %q", e.EventID, e.Field, e.Value)
}

func (e *DateParseWarning) Unwrap() error {
	return ErrDateParse
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsRetryable reports whether err is transient (rate limit or transport).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransport)
}

// RetryAfter extracts the server-suggested backoff from a RateLimitError.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
