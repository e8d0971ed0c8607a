package backoff

import (
	"testing"
	"time"
)

func TestExponentialJitterDeterministicSequence(t *testing.T) {
	p := Params{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0,
	}

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}

	for attempt, expected := range want {
		if got := ExponentialJitter(attempt, p); got != expected {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, expected)
		}
	}
}

func TestExponentialJitterCapsAtMax(t *testing.T) {
	p := Params{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}

	if got := ExponentialJitter(10, p); got != 30*time.Second {
		t.Errorf("Expected cap at 30s, got %v", got)
	}
	if got := ExponentialJitter(60, p); got != 30*time.Second {
		t.Errorf("Expected overflow-guarded cap at 30s, got %v", got)
	}
}

func TestExponentialJitterNegativeAttempt(t *testing.T) {
	p := Params{Initial: time.Second, Max: time.Minute, Multiplier: 2.0}

	if got := ExponentialJitter(-3, p); got != time.Second {
		t.Errorf("Expected Initial for negative attempt, got %v", got)
	}
}

func TestExponentialJitterWithinJitterBounds(t *testing.T) {
	p := Params{
		Initial:    100 * time.Millisecond,
		Max:        time.Minute,
		Multiplier: 2.0,
		Jitter:     0.5,
	}

	for i := 0; i < 50; i++ {
		got := ExponentialJitter(1, p)
		if got < 200*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("Expected delay in [200ms, 300ms], got %v", got)
		}
	}
}

func TestExponentialJitterClampsJitterFactor(t *testing.T) {
	p := Params{
		Initial:    100 * time.Millisecond,
		Max:        time.Minute,
		Multiplier: 2.0,
		Jitter:     5.0, // treated as 1.0
	}

	for i := 0; i < 50; i++ {
		got := ExponentialJitter(0, p)
		if got < 100*time.Millisecond || got > 200*time.Millisecond {
			t.Fatalf("Expected delay in [100ms, 200ms], got %v", got)
		}
	}
}

func TestDecorrelatedJitterFirstAttempt(t *testing.T) {
	p := Params{Initial: time.Second, Max: time.Minute, Multiplier: 2.0}

	if got := DecorrelatedJitter(0, p); got != time.Second {
		t.Errorf("Expected Initial on attempt 0, got %v", got)
	}
}

func TestDecorrelatedJitterBounds(t *testing.T) {
	p := Params{Initial: 100 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2.0}

	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 20; i++ {
			got := DecorrelatedJitter(attempt, p)
			if got < p.Initial || got > p.Max {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, got, p.Initial, p.Max)
			}
		}
	}
}
