package backline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/modbotlabs/backline/internal/backoff"
)

// maxResponseBytes caps how much of a response body is buffered.
const maxResponseBytes = 10 * 1024 * 1024

// Client is the orchestrator for every outbound call to the backend
// API. Each call gets a request ID, flows through the per-endpoint
// circuit breaker, and is retried with exponential backoff while the
// failure remains retryable. It is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	transport Doer

	timeout           time.Duration
	maxRetries        int
	retryDelay        time.Duration
	backoffMultiplier float64
	maxBackoff        time.Duration
	jitter            float64
	backoffStrategy   backoff.Strategy

	breakers       *BreakerRegistry
	breakerEnabled bool

	limiter *rate.Limiter

	metrics      *MetricsCollector
	logger       Logger
	auditEnabled bool
	requestIDGen func() string

	validationError error
}

// New constructs a Client for baseURL using the provided functional
// options. Configuration is validated once; an invalid client fails
// every call with the validation error rather than panicking.
func New(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		transport: &http.Client{
			Timeout: 30 * time.Second,
		},
		timeout:           30 * time.Second,
		maxRetries:        3,
		retryDelay:        time.Second,
		backoffMultiplier: 2.0,
		maxBackoff:        30 * time.Second,
		jitter:            0,
		backoffStrategy:   backoff.ExponentialJitter,
		breakers:          NewBreakerRegistry(DefaultBreakerConfig()),
		breakerEnabled:    true,
		auditEnabled:      true,
		requestIDGen:      defaultRequestID,
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

func defaultRequestID() string {
	return ulid.Make().String()
}

// Get performs a GET against path.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, opts)
}

// Post performs a POST with body marshaled as JSON.
func (c *Client) Post(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.call(ctx, http.MethodPost, path, body, opts)
}

// Put performs a PUT with body marshaled as JSON.
func (c *Client) Put(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.call(ctx, http.MethodPut, path, body, opts)
}

// Patch performs a PATCH with body marshaled as JSON.
func (c *Client) Patch(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.call(ctx, http.MethodPatch, path, body, opts)
}

// Delete performs a DELETE against path.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil, opts)
}

// CircuitBreakerStats returns a snapshot for every endpoint breaker.
func (c *Client) CircuitBreakerStats() map[string]BreakerStats {
	return c.breakers.AllStats()
}

// ResetCircuitBreakers returns every endpoint breaker to closed.
func (c *Client) ResetCircuitBreakers() {
	c.breakers.ResetAll()
}

// IsValid reports whether configuration validation passed at
// construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// call runs the full pipeline: request ID assignment, rate limit and
// breaker checks, the retry loop, metrics and audit logging.
func (c *Client) call(ctx context.Context, method, path string, body any, opts *RequestOptions) (*Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	requestID := c.requestIDGen()
	start := time.Now()
	endpoint := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, c.newError(ErrorTypeValidation, "request body is not serializable", err, 0, false, method, endpoint, requestID, 0, start)
		}
	}

	c.metrics.RecordRequestStart(method, endpoint)
	defer c.metrics.RecordRequestEnd(method, endpoint)

	var resp *Response
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = c.attempt(ctx, method, endpoint, payload, opts, requestID, attempt, start)
		if err == nil {
			break
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable || attempt >= c.maxRetries {
			break
		}

		delay := c.backoffStrategy(attempt, backoff.Params{
			Initial:    c.retryDelay,
			Max:        c.maxBackoff,
			Multiplier: c.backoffMultiplier,
			Jitter:     c.jitter,
		})

		if c.logger != nil {
			c.logger.Debug("scheduling retry",
				"requestID", requestID, "endpoint", endpoint,
				"attempt", attempt+1, "maxRetries", c.maxRetries, "backoff", delay)
		}

		if werr := sleepContext(ctx, delay); werr != nil {
			err = c.newError(ErrorTypeTimeout, "retry wait aborted", werr, 0, false, method, endpoint, requestID, attempt, start)
			break
		}

		c.metrics.RecordRetry(method, endpoint, attempt+1)
	}

	duration := time.Since(start)
	status := 0
	if resp != nil {
		status = resp.Status
	}
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	c.metrics.RecordRequest(method, endpoint, status, duration)

	if resp != nil {
		resp.RequestID = requestID
		resp.Duration = duration
	}

	if c.auditEnabled && c.logger != nil {
		if err != nil {
			c.logger.Warn("request failed",
				"requestID", requestID, "method", method, "endpoint", endpoint,
				"status", status, "duration", duration, "error", err.Error())
		} else {
			c.logger.Info("request completed",
				"requestID", requestID, "method", method, "endpoint", endpoint,
				"status", status, "duration", duration)
		}
	}

	return resp, err
}

// attempt performs one transport round trip through the limiter and
// the endpoint breaker, classifying the result into a typed error.
func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, opts *RequestOptions, requestID string, attempt int, start time.Time) (*Response, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.metrics.RecordError(ErrorTypeRateLimit, method, endpoint)
		return nil, c.newError(ErrorTypeRateLimit, "rate limit exceeded", ErrRateLimited, http.StatusTooManyRequests, true, method, endpoint, requestID, attempt, start)
	}

	var resp *Response
	var tErr error

	if c.breakerEnabled {
		cb := c.breakers.ForEndpoint(endpoint)
		execErr := cb.Execute(func() error {
			resp, tErr = c.roundTrip(ctx, method, endpoint, payload, opts, requestID)
			if tErr != nil {
				return tErr
			}
			if resp.Status >= 500 {
				return errServerStatus
			}
			return nil
		})
		c.metrics.RecordCircuitBreakerState(endpoint, cb.State())

		if errors.Is(execErr, ErrCircuitOpen) {
			if c.logger != nil {
				c.logger.Warn("circuit breaker open",
					"requestID", requestID, "endpoint", endpoint)
			}
			c.metrics.RecordError(ErrorTypeCircuitOpen, method, endpoint)
			return nil, c.newError(ErrorTypeCircuitOpen, "circuit breaker is open", ErrCircuitOpen, http.StatusServiceUnavailable, true, method, endpoint, requestID, attempt, start)
		}
	} else {
		resp, tErr = c.roundTrip(ctx, method, endpoint, payload, opts, requestID)
	}

	return c.classify(resp, tErr, method, endpoint, requestID, attempt, start)
}

// classify converts the raw transport outcome into either a successful
// Response or a typed APIError per the retry taxonomy: timeouts,
// network errors and 5xx are retryable; 4xx never is.
func (c *Client) classify(resp *Response, err error, method, endpoint, requestID string, attempt int, start time.Time) (*Response, error) {
	switch {
	case err != nil:
		if isTimeout(err) {
			c.metrics.RecordError(ErrorTypeTimeout, method, endpoint)
			return nil, c.newError(ErrorTypeTimeout, "request timed out", err, 0, true, method, endpoint, requestID, attempt, start)
		}
		c.metrics.RecordError(ErrorTypeNetwork, method, endpoint)
		return nil, c.newError(ErrorTypeNetwork, "no response received", err, 0, true, method, endpoint, requestID, attempt, start)
	case resp.Status >= 500:
		c.metrics.RecordError(ErrorTypeServer, method, endpoint)
		return nil, c.newError(ErrorTypeServer, "server error", nil, resp.Status, true, method, endpoint, requestID, attempt, start)
	case resp.Status >= 400:
		c.metrics.RecordError(ErrorTypeClient, method, endpoint)
		return nil, c.newError(ErrorTypeClient, "client error", nil, resp.Status, false, method, endpoint, requestID, attempt, start)
	default:
		return resp, nil
	}
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte, opts *RequestOptions, requestID string) (*Response, error) {
	timeout := c.timeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("User-Agent", "backline/"+Version)
	req.Header.Set("X-Request-ID", requestID)
	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}

	httpResp, err := c.transport.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	return &Response{
		Data:   data,
		Status: httpResp.StatusCode,
		Header: httpResp.Header.Clone(),
	}, nil
}

func (c *Client) newError(errType, message string, cause error, status int, retryable bool, method, endpoint, requestID string, attempt int, start time.Time) *APIError {
	return &APIError{
		Type:       errType,
		Message:    message,
		Cause:      cause,
		StatusCode: status,
		Endpoint:   endpoint,
		Method:     method,
		RequestID:  requestID,
		Retryable:  retryable,
		Attempt:    attempt,
		MaxRetries: c.maxRetries,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepContext waits for d without blocking other goroutines, bailing
// out early when ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
