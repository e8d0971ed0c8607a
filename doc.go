// Package backline is the resilient communication layer between a
// moderation bot and its remote backend API. Every outbound call is
// wrapped with composable reliability primitives:
//
//   - Retries with exponential backoff + jitter
//   - Per-endpoint circuit breakers (open / half-open / closed states)
//   - Client-side rate limiting (token bucket)
//   - A generic TTL + LRU value cache for layering over lookups
//   - Prometheus metrics and lightweight structured audit logging
//
// Durable process state (restart markers, scheduled action queues and
// similar operational state that must survive a restart) lives in the
// store subpackage: a pluggable key/value store with per-entry TTL and
// a periodic expiry sweep.
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Typed errors carrying enough context to decide on retry/alert
//   - A mock transport satisfying the same contract for offline runs
//
// Typical usage:
//
//	client := backline.New("https://mod-api.example.com",
//	    backline.WithAPIKey(os.Getenv("MOD_API_KEY")),
//	    backline.WithMaxRetries(3),
//	    backline.WithCircuitBreaker(backline.DefaultBreakerConfig()),
//	    backline.WithMetrics(),
//	)
//	resp, err := client.Get(ctx, "/cases/123", nil)
//
// Only transport failures and 5xx responses trigger retries; 4xx
// responses surface immediately as non-retryable client errors.
package backline
