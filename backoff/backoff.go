// Package backoff provides pluggable retry delay strategies for step
// execution. All strategies are safe for concurrent use (they are
// stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait after retry attempt n (0-indexed).
	// Attempt 0 is the initial call; its delay is the wait before the
	// first retry.
	Delay(attempt int) time.Duration
}

// Kind tags a delay strategy inside a retry policy.
type Kind string

// Strategy kinds accepted by ForPolicy.
const (
	KindFixed       Kind = "fixed"
	KindLinear      Kind = "linear"
	KindExponential Kind = "exponential"
)

// ──────────────────────────────────────────────────
// Fixed
// ──────────────────────────────────────────────────

// Fixed always returns the same delay regardless of attempt number.
type Fixed struct {
	Interval time.Duration
}

// NewFixed creates a fixed backoff strategy.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

// Delay returns the fixed interval.
func (f *Fixed) Delay(_ int) time.Duration {
	if f.Interval < 0 {
		return 0
	}
	return f.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear increases the delay linearly with the attempt number.
// Delay = min(Initial * (attempt+1), Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * (attempt+1), capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := l.Initial * time.Duration(attempt+1)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^attempt, Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^attempt, capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(e.Initial) * math.Pow(2, float64(attempt))
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────
// Jitter
// ──────────────────────────────────────────────────

// Jitter adds a uniform random slice on top of the wrapped strategy's
// delay. Delay = d + random(0, d*Factor) with Factor clamped to [0, 1].
// The result is never below the un-jittered delay, so growth and cap
// properties of the wrapped strategy are preserved. Jitter prevents
// thundering herd when many retries happen simultaneously.
type Jitter struct {
	Strategy Strategy
	Factor   float64
}

// NewJitter wraps a strategy with additive jitter.
func NewJitter(s Strategy, factor float64) *Jitter {
	return &Jitter{Strategy: s, Factor: factor}
}

// Delay returns the wrapped delay plus a random fraction of it.
func (j *Jitter) Delay(attempt int) time.Duration {
	d := j.Strategy.Delay(attempt)
	if d <= 0 || j.Factor <= 0 {
		return d
	}
	f := j.Factor
	if f > 1 {
		f = 1
	}
	return d + time.Duration(rand.Float64()*f*float64(d)) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Policy mapping
// ──────────────────────────────────────────────────

// ForPolicy builds a Strategy from retry policy fields. Unknown kinds
// fall back to exponential. A non-positive base is floored at 1ms for
// the growing strategies so retries never spin hot.
func ForPolicy(kind Kind, base, maxDelay time.Duration, jitter float64) Strategy {
	if base <= 0 && kind != KindFixed {
		base = time.Millisecond
	}

	var s Strategy
	switch kind {
	case KindFixed:
		s = NewFixed(base)
	case KindLinear:
		s = NewLinear(base, maxDelay)
	default:
		s = NewExponential(base, maxDelay)
	}

	if jitter > 0 {
		return NewJitter(s, jitter)
	}
	return s
}

// DefaultStrategy returns the default backoff used by the engine:
// jittered exponential with 100ms initial, 30s max, and 0.1 jitter.
func DefaultStrategy() Strategy {
	return ForPolicy(KindExponential, 100*time.Millisecond, 30*time.Second, 0.1)
}
