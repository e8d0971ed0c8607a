package backline

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/modbotlabs/backline/internal/backoff"
)

// WithAPIKey sets the bearer token attached to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTransport sets the HTTP transport. Pass a *MockTransport to run
// against the in-memory fake backend.
func WithTransport(transport Doer) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial backoff duration.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithBackoffMultiplier sets the backoff growth factor.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.backoffMultiplier = f
	}
}

// WithMaxBackoff caps the backoff duration.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0).
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithBackoffStrategy replaces the backoff calculation.
func WithBackoffStrategy(s backoff.Strategy) Option {
	return func(c *Client) {
		c.backoffStrategy = s
	}
}

// WithCircuitBreaker enables circuit breaking with the given
// per-endpoint thresholds.
func WithCircuitBreaker(config BreakerConfig) Option {
	return func(c *Client) {
		c.breakers = NewBreakerRegistry(config)
		c.breakerEnabled = true
	}
}

// WithoutCircuitBreaker disables circuit breaking entirely.
func WithoutCircuitBreaker() Option {
	return func(c *Client) {
		c.breakerEnabled = false
	}
}

// WithRateLimit enables a client-side token bucket of rps requests per
// second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the logger used for audit and debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAuditLogging toggles the per-call audit log line.
func WithAuditLogging(enabled bool) Option {
	return func(c *Client) {
		c.auditEnabled = enabled
	}
}

// WithRequestIDGenerator sets a custom request ID generator.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns
// an error if invalid.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateBaseConfig()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateBreakerConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &APIError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}

	return nil
}

func (c *Client) validateBaseConfig() []string {
	var problems []string

	if c.baseURL == "" {
		problems = append(problems, "baseURL must not be empty")
	}
	if c.transport == nil {
		problems = append(problems, "transport cannot be nil")
	}
	if c.requestIDGen == nil {
		problems = append(problems, "request ID generator cannot be nil")
	}

	return problems
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries must be non-negative")
	}
	if c.retryDelay <= 0 {
		problems = append(problems, "retryDelay must be positive")
	}
	if c.maxBackoff < c.retryDelay {
		problems = append(problems, "maxBackoff must be greater than or equal to retryDelay")
	}
	if c.backoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}
	if c.jitter < 0 || c.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.backoffStrategy == nil {
		problems = append(problems, "backoff strategy cannot be nil")
	}

	return problems
}

func (c *Client) validateBreakerConfig() []string {
	var problems []string

	if !c.breakerEnabled {
		return problems
	}

	config := c.breakers.config
	if config.FailureThreshold <= 0 {
		problems = append(problems, "circuitBreaker FailureThreshold must be positive")
	}
	if config.RecoveryTimeout <= 0 {
		problems = append(problems, "circuitBreaker RecoveryTimeout must be positive")
	}
	if config.SuccessThreshold <= 0 {
		problems = append(problems, "circuitBreaker SuccessThreshold must be positive")
	}
	if config.MonitoringWindow <= 0 {
		problems = append(problems, "circuitBreaker MonitoringWindow must be positive")
	}

	return problems
}

func (c *Client) validateExtremeValues() []string {
	var problems []string

	if c.maxRetries > 100 {
		problems = append(problems, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.retryDelay > 10*time.Minute {
		problems = append(problems, "retryDelay > 10m may cause very long delays")
	}
	if c.maxBackoff > time.Hour {
		problems = append(problems, "maxBackoff > 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout > 10m may cause requests to hang for too long")
	}

	return problems
}
