package backline

import "sync"

// BreakerRegistry owns one CircuitBreaker per distinct endpoint
// string, created lazily on first use. The registry is an explicit
// dependency of the client, never a package-level singleton, so tests
// can run against isolated instances.
type BreakerRegistry struct {
	mu       sync.Mutex
	config   BreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry whose breakers share config.
func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// ForEndpoint returns the breaker for endpoint, constructing it on
// first use.
func (r *BreakerRegistry) ForEndpoint(endpoint string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[endpoint]
	if !ok {
		cb = NewCircuitBreaker(r.config)
		r.breakers[endpoint] = cb
	}
	return cb
}

// AllStats returns a snapshot for every breaker in the registry keyed
// by endpoint.
func (r *BreakerRegistry) AllStats() map[string]BreakerStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]BreakerStats, len(r.breakers))
	for endpoint, cb := range r.breakers {
		stats[endpoint] = cb.Stats()
	}
	return stats
}

// ResetAll returns every breaker to closed with counters cleared.
func (r *BreakerRegistry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// Len reports how many endpoints have breakers.
func (r *BreakerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.breakers)
}
