// Package backoff provides the delay calculation strategies used by
// the retry loop.
package backoff

import (
	"math/rand"
	"time"
)

// Params bundles the tuning knobs shared by all strategies.
type Params struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the fraction of the computed delay added as uniform
	// random noise, clamped to [0, 1].
	Jitter float64
}

// Strategy computes the wait before retry attempt+1. Attempt numbering
// starts at 0 for the wait after the first failed attempt.
type Strategy func(attempt int, p Params) time.Duration

// ExponentialJitter grows the delay by Multiplier per attempt and adds
// uniform jitter. With Jitter 0 the sequence is deterministic:
// Initial, Initial*Multiplier, Initial*Multiplier^2, ... capped at Max.
func ExponentialJitter(attempt int, p Params) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30 // overflow guard
	}

	delay := time.Duration(float64(p.Initial) * pow(p.Multiplier, attempt))
	if delay < 0 || (p.Max > 0 && delay > p.Max) {
		delay = p.Max
	}

	jitter := clamp(p.Jitter)
	if jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if p.Max > 0 && delay+extra > p.Max {
			delay = p.Max
		} else {
			delay += extra
		}
	}
	return delay
}

// DecorrelatedJitter picks a uniform delay between Initial and
// min(Max, Initial*3^attempt), per the AWS exponential backoff and
// jitter write-up. Smoother tail latencies than ExponentialJitter at
// the cost of determinism.
func DecorrelatedJitter(attempt int, p Params) time.Duration {
	if attempt <= 0 {
		return p.Initial
	}
	if attempt > 10 {
		attempt = 10 // overflow guard
	}

	base := float64(p.Initial)
	upper := base * pow(3.0, attempt)

	maxf := float64(p.Max)
	if p.Max > 0 && (upper > maxf || upper < 0) {
		upper = maxf
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || (p.Max > 0 && delay > p.Max) {
		delay = p.Max
	}
	return delay
}

func clamp(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
