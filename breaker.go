package backline

import (
	"sync"
	"time"
)

// CircuitBreaker guards one logical endpoint. It starts closed, trips
// open after FailureThreshold recorded failures, and probes recovery
// through a half-open trial state once RecoveryTimeout has elapsed.
//
// All state is mutated through Execute. The permission check and the
// outcome recording each run under the breaker mutex, so transitions
// are serialized per instance; the guarded operation itself runs
// unlocked so slow calls do not block other callers' checks.
type CircuitBreaker struct {
	config BreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
	lastSuccess time.Time
	nextAttempt time.Time
}

// BreakerStats is a point-in-time snapshot of a breaker.
type BreakerStats struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	Successes   int       `json:"successes"`
	LastFailure time.Time `json:"lastFailure,omitzero"`
	LastSuccess time.Time `json:"lastSuccess,omitzero"`
	NextAttempt time.Time `json:"nextAttempt,omitzero"`
}

// NewCircuitBreaker creates a breaker with the given thresholds. The
// config is stored as supplied; see DefaultBreakerConfig for the stock
// values.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs op if the breaker currently permits execution and
// records the outcome. When the breaker is open and the recovery
// timeout has not elapsed, ErrCircuitOpen is returned without invoking
// op.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := op()
	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if !time.Now().Before(cb.nextAttempt) {
			cb.state = StateHalfOpen
			cb.successes = 0
			cb.nextAttempt = time.Time{}
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	prev := cb.lastFailure
	cb.lastFailure = now

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.trip(now)
			return
		}
		// Approximate decay: forget one failure when the previous one
		// predates the monitoring window.
		if !prev.IsZero() && now.Sub(prev) > cb.config.MonitoringWindow && cb.failures > 0 {
			cb.failures--
		}
	case StateHalfOpen:
		// A single failure during the trial reopens the circuit.
		cb.failures++
		cb.trip(now)
	case StateOpen:
		// Already open; only lastFailure moves.
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastSuccess = time.Now()

	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
			cb.nextAttempt = time.Time{}
		}
	}
}

// trip moves the breaker to open. Caller holds cb.mu.
func (cb *CircuitBreaker) trip(now time.Time) {
	cb.state = StateOpen
	cb.successes = 0
	cb.nextAttempt = now.Add(cb.config.RecoveryTimeout)
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker's counters and timestamps.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerStats{
		State:       cb.state.String(),
		Failures:    cb.failures,
		Successes:   cb.successes,
		LastFailure: cb.lastFailure,
		LastSuccess: cb.lastSuccess,
		NextAttempt: cb.nextAttempt,
	}
}

// Reset returns the breaker to closed with all counters cleared.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.lastFailure = time.Time{}
	cb.lastSuccess = time.Time{}
	cb.nextAttempt = time.Time{}
}
