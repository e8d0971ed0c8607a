package backline

import (
	"encoding/json"
	"net/http"
	"time"
)

// Doer abstracts the HTTP transport so the real client and the mock
// backend are interchangeable at construction time.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// BreakerConfig holds per-endpoint circuit breaker thresholds. All
// fields are required; the breaker applies no defaults itself. Use
// DefaultBreakerConfig for the stock values.
type BreakerConfig struct {
	// FailureThreshold is the number of recorded failures that trips a
	// closed breaker open.
	FailureThreshold int
	// RecoveryTimeout is how long an open breaker denies calls before
	// permitting a half-open trial.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the breaker again.
	SuccessThreshold int
	// MonitoringWindow bounds how long a recorded failure keeps
	// counting against FailureThreshold (approximate decay, not an
	// exact sliding window).
	MonitoringWindow time.Duration
}

// DefaultBreakerConfig returns the breaker thresholds used when a
// client enables circuit breaking without explicit configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
		MonitoringWindow: 2 * time.Minute,
	}
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Response is the envelope returned for every successful call.
type Response struct {
	// Data is the raw response body.
	Data []byte
	// Status is the HTTP status code.
	Status int
	// Header holds the response headers.
	Header http.Header
	// RequestID identifies the attempt group (stable across retries).
	RequestID string
	// Duration is the total wall time including retries.
	Duration time.Duration
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Data, v)
}

// RequestOptions carries per-call overrides.
type RequestOptions struct {
	// Headers are added to the outgoing request.
	Headers map[string]string
	// Timeout overrides the client-wide timeout when positive.
	Timeout time.Duration
}

// Logger is the minimal structured logging interface the client uses
// for audit and debug output. Keys and values alternate.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Option configures a Client.
type Option func(*Client)
