package backline

import (
	"errors"
	"fmt"
	"time"
)

// Error type identifiers carried by APIError.Type.
const (
	ErrorTypeTimeout     = "Timeout"
	ErrorTypeClient      = "Client"
	ErrorTypeServer      = "Server"
	ErrorTypeNetwork     = "Network"
	ErrorTypeCircuitOpen = "CircuitOpen"
	ErrorTypeRateLimit   = "RateLimit"
	ErrorTypeValidation  = "Validation"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrCircuitOpen is returned when a breaker denies a call without
	// attempting it.
	ErrCircuitOpen = errors.New("backline: circuit open")

	// ErrRateLimited is returned when the client-side limiter denies a
	// call.
	ErrRateLimited = errors.New("backline: rate limited")

	// errServerStatus marks a 5xx response as a breaker failure inside
	// Execute; it never escapes the call pipeline.
	errServerStatus = errors.New("backline: server status")
)

// APIError is the typed error surfaced for every failed call. It
// carries enough context for callers to decide whether to retry,
// alert, or fix the request.
type APIError struct {
	Type       string
	Message    string
	Cause      error
	StatusCode int
	Endpoint   string
	Method     string
	RequestID  string
	Retryable  bool
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*APIError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsRetryable reports whether err represents a failure that might
// succeed on retry: network errors, timeouts, 5xx responses and
// breaker/limiter denials. 4xx client errors and validation errors are
// never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}

	return false
}
