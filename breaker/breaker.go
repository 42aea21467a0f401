// Package breaker implements the circuit breaker pattern for guarding
// calls to failing dependencies. A breaker trips open after a run of
// consecutive failures, rejects calls while open, and probes the
// dependency with a bounded number of half-open calls after a recovery
// timeout.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xraph/cascade"
)

// State is the circuit breaker state.
type State int8

const (
	// Closed allows all calls through. Failures are counted.
	Closed State = iota
	// Open rejects all calls immediately.
	Open
	// HalfOpen allows a bounded number of probe calls through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from Closed to Open.
	FailureThreshold int

	// SuccessThreshold is the number of successes in HalfOpen required
	// to close the breaker again.
	SuccessThreshold int

	// RecoveryTimeout is how long the breaker stays Open before
	// admitting half-open probes.
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls bounds the number of concurrent probe calls
	// admitted while HalfOpen.
	HalfOpenMaxCalls int

	// CallTimeout, when positive, bounds each call made through
	// Execute. A call that exceeds it counts as a failure.
	CallTimeout time.Duration
}

// DefaultConfig returns the breaker defaults: trip after 5 consecutive
// failures, stay open 30s, admit a single half-open probe, and close
// after one probe success. No per-call timeout.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold < 1 {
		c.SuccessThreshold = 1
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls < 1 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

type outcome int8

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeNeutral
)

// Breaker is a single circuit breaker. It is safe for concurrent use.
//
// The Open → HalfOpen transition is lazy: it happens on the first
// Allow or State call after the recovery timeout elapses, not on a
// background timer.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
	onChange  func(from, to State)
}

// New creates a closed breaker with the given config. Zero config
// fields fall back to the defaults.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), state: Closed}
}

// OnStateChange registers a callback fired after every state
// transition. The callback runs outside the breaker lock and must not
// block for long.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// SetConfig replaces the breaker thresholds. State and counters are
// preserved.
func (b *Breaker) SetConfig(cfg Config) {
	b.mu.Lock()
	b.cfg = cfg.withDefaults()
	b.mu.Unlock()
}

// Allow reports whether a call may proceed. It returns
// cascade.ErrCircuitOpen when the breaker is open, or when it is
// half-open and the probe budget is already in flight. An allowed
// half-open call reserves a probe slot that is released by
// RecordSuccess or RecordFailure.
func (b *Breaker) Allow() error {
	b.mu.Lock()

	var from, to State
	changed := false
	switch b.state {
	case Closed:
	case Open:
		if time.Since(b.openedAt) < b.cfg.RecoveryTimeout {
			b.mu.Unlock()
			return cascade.ErrCircuitOpen
		}
		from, to, changed = Open, HalfOpen, true
		b.state = HalfOpen
		b.successes = 0
		b.inFlight = 1
	case HalfOpen:
		if b.inFlight >= b.cfg.HalfOpenMaxCalls {
			b.mu.Unlock()
			return cascade.ErrCircuitOpen
		}
		b.inFlight++
	}

	cb := b.onChange
	b.mu.Unlock()

	if changed && cb != nil {
		cb(from, to)
	}
	return nil
}

// RecordSuccess notes a successful call. In Closed it resets the
// consecutive failure count; in HalfOpen it counts toward closing the
// breaker.
func (b *Breaker) RecordSuccess() {
	b.observe(outcomeSuccess)
}

// RecordFailure notes a failed call. In Closed it counts toward the
// failure threshold; in HalfOpen it reopens the breaker immediately.
func (b *Breaker) RecordFailure() {
	b.observe(outcomeFailure)
}

func (b *Breaker) observe(oc outcome) {
	b.mu.Lock()

	if b.state == HalfOpen && b.inFlight > 0 {
		b.inFlight--
	}

	var from, to State
	changed := false
	switch oc {
	case outcomeSuccess:
		switch b.state {
		case Closed:
			b.failures = 0
		case HalfOpen:
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				from, to, changed = b.state, Closed, true
				b.reset(Closed)
			}
		}
	case outcomeFailure:
		switch b.state {
		case Closed:
			b.failures++
			if b.failures >= b.cfg.FailureThreshold {
				from, to, changed = b.state, Open, true
				b.trip()
			}
		case HalfOpen:
			from, to, changed = b.state, Open, true
			b.trip()
		}
	case outcomeNeutral:
		// probe slot released above, counters untouched
	}

	cb := b.onChange
	b.mu.Unlock()

	if changed && cb != nil {
		cb(from, to)
	}
}

// trip moves the breaker to Open. Must be called with the lock held.
func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.successes = 0
	b.inFlight = 0
}

// reset moves the breaker to the given state with clean counters.
// Must be called with the lock held.
func (b *Breaker) reset(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0
	b.inFlight = 0
}

// Execute runs op through the breaker: it checks Allow, applies the
// configured call timeout, and records the outcome. Caller
// cancellation is not counted against the breaker; a call timeout is.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	b.mu.Lock()
	timeout := b.cfg.CallTimeout
	b.mu.Unlock()

	if timeout <= 0 {
		err := op(ctx)
		b.observe(classify(err))
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(cctx)
	}()

	select {
	case err := <-done:
		b.observe(classify(err))
		return err
	case <-cctx.Done():
		err := cctx.Err()
		b.observe(classify(err))
		return err
	}
}

// classify maps a call error to a breaker outcome. Cancellation by the
// caller is neutral: it releases the half-open probe slot without
// counting for or against the dependency.
func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, context.Canceled):
		return outcomeNeutral
	default:
		return outcomeFailure
	}
}

// State returns the current state, applying the lazy Open → HalfOpen
// transition when the recovery timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()

	var from, to State
	changed := false
	if b.state == Open && time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
		from, to, changed = Open, HalfOpen, true
		b.state = HalfOpen
		b.successes = 0
		b.inFlight = 0
	}

	s := b.state
	cb := b.onChange
	b.mu.Unlock()

	if changed && cb != nil {
		cb(from, to)
	}
	return s
}

// Counts returns the consecutive failure and half-open success
// counters, for diagnostics.
func (b *Breaker) Counts() (failures, successes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.successes
}
