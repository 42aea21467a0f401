// Package retry runs fallible operations through a bounded retry
// ladder with pluggable backoff and error classification. Attempt
// history is recorded so callers can report how a result was reached.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/backoff"
)

// Operation is a fallible unit of work.
type Operation func(ctx context.Context) error

// Classifier reports whether an error is worth retrying.
type Classifier func(err error) bool

// Policy configures one retry ladder.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	// An operation therefore runs at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay seeds the backoff strategy.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// Jitter adds uniform random headroom on top of each delay,
	// as a fraction of the delay in [0, 1].
	Jitter float64

	// Strategy selects the backoff curve. Empty means exponential.
	Strategy backoff.Kind

	// MaxTotal bounds the elapsed wall time of the whole ladder.
	// Zero means no bound.
	MaxTotal time.Duration

	// Classifier overrides the default retryable-error
	// classification. Nil means the default: explicit error kinds
	// decide first, then token matching, then message classification.
	Classifier Classifier

	// Tokens extends the default classifier: an error whose message
	// contains one of these substrings is retried even when its kind
	// says otherwise. Nil means the package default token list.
	Tokens []string

	// ShouldRetry, when set, opts out of the ladder entirely: Do
	// delegates to DoWithShouldRetry and every other field is ignored.
	// The predicate owns the retry budget and any inter-attempt delay.
	ShouldRetry ShouldRetry
}

// DefaultPolicy returns the engine default: 3 retries, exponential
// backoff from 100ms capped at 30s, 10% jitter, no total bound.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Jitter:     0.1,
		Strategy:   backoff.KindExponential,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Strategy == "" {
		p.Strategy = backoff.KindExponential
	}
	return p
}

func (p Policy) retryable(err error) bool {
	if p.Classifier != nil {
		return p.Classifier(err)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, cascade.ErrCircuitOpen):
		// An open breaker stays open for its recovery timeout, which
		// usually outlasts the ladder. Fail fast and let the DLQ pick
		// the execution up later.
		return false
	}

	if kind, ok := cascade.ExplicitKind(err); ok {
		return kind.Retryable()
	}

	tokens := p.Tokens
	if len(tokens) == 0 {
		tokens = cascade.DefaultRetryableTokens
	}
	if cascade.ContainsToken(err.Error(), tokens) {
		return true
	}

	return cascade.KindOf(err).Retryable()
}

// Attempt records one execution of the operation.
type Attempt struct {
	// Index is the 0-based attempt number.
	Index int

	// At is when the attempt finished.
	At time.Time

	// Delay is the backoff wait scheduled after this attempt.
	// Zero for successful and final attempts.
	Delay time.Duration

	// Err is the attempt's error, nil on success.
	Err error

	// OK reports whether the attempt succeeded.
	OK bool
}

// Result is the full history of one retry ladder.
type Result struct {
	Attempts []Attempt
}

// Retries returns the number of retries consumed, i.e. attempts beyond
// the first.
func (r *Result) Retries() int {
	if len(r.Attempts) <= 1 {
		return 0
	}
	return len(r.Attempts) - 1
}

// LastErr returns the error of the final attempt, nil if it succeeded.
func (r *Result) LastErr() error {
	if len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[len(r.Attempts)-1].Err
}

// Do runs op under the policy: attempts 0..MaxRetries, stopping early
// on success, on a non-retryable error, when MaxTotal elapses, or when
// ctx is done. The returned error is the final attempt's error (or the
// context error if the wait was interrupted); the Result always holds
// the complete attempt history.
func Do(ctx context.Context, policy Policy, op Operation) (*Result, error) {
	if policy.ShouldRetry != nil {
		return DoWithShouldRetry(ctx, op, policy.ShouldRetry)
	}
	policy = policy.withDefaults()
	strategy := backoff.ForPolicy(policy.Strategy, policy.BaseDelay, policy.MaxDelay, policy.Jitter)

	start := time.Now()
	res := &Result{}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := op(ctx)
		a := Attempt{Index: attempt, At: time.Now(), Err: err, OK: err == nil}

		if err == nil {
			res.Attempts = append(res.Attempts, a)
			return res, nil
		}

		exhausted := attempt >= policy.MaxRetries
		overBudget := policy.MaxTotal > 0 && time.Since(start) >= policy.MaxTotal
		if exhausted || overBudget || !policy.retryable(err) {
			res.Attempts = append(res.Attempts, a)
			return res, err
		}

		a.Delay = strategy.Delay(attempt)
		res.Attempts = append(res.Attempts, a)

		timer := time.NewTimer(a.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, ctx.Err()
		case <-timer.C:
		}
	}
}

// ShouldRetry decides whether to run another attempt after err. The
// predicate fully replaces the policy ladder: it owns the retry budget
// and may block to impose its own inter-attempt delay, honoring ctx.
type ShouldRetry func(ctx context.Context, attempt int, err error) bool

// DoWithShouldRetry runs op until it succeeds, the predicate declines,
// or ctx is done. No backoff is applied between attempts beyond what
// the predicate itself imposes.
func DoWithShouldRetry(ctx context.Context, op Operation, shouldRetry ShouldRetry) (*Result, error) {
	res := &Result{}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := op(ctx)
		res.Attempts = append(res.Attempts, Attempt{
			Index: attempt,
			At:    time.Now(),
			Err:   err,
			OK:    err == nil,
		})

		if err == nil {
			return res, nil
		}
		if !shouldRetry(ctx, attempt, err) {
			return res, err
		}
	}
}
