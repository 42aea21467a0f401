package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/backoff"
	"github.com/xraph/cascade/retry"
)

var errNetwork = errors.New("connection refused")

func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Strategy:   backoff.KindFixed,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	res, err := retry.Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(res.Attempts) != 1 || !res.Attempts[0].OK {
		t.Errorf("attempts = %+v, want single OK attempt", res.Attempts)
	}
	if res.Retries() != 0 {
		t.Errorf("Retries() = %d, want 0", res.Retries())
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	res, err := retry.Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return errNetwork
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if res.Retries() != 2 {
		t.Errorf("Retries() = %d, want 2", res.Retries())
	}
	if res.LastErr() != nil {
		t.Errorf("LastErr() = %v, want nil", res.LastErr())
	}

	// Failed attempts carry their scheduled delay; the final one does not.
	if res.Attempts[0].Delay <= 0 {
		t.Error("first failed attempt has no recorded delay")
	}
	if res.Attempts[2].Delay != 0 {
		t.Errorf("final attempt delay = %v, want 0", res.Attempts[2].Delay)
	}
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	res, err := retry.Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return errNetwork
	})

	if !errors.Is(err, errNetwork) {
		t.Fatalf("Do() = %v, want errNetwork", err)
	}
	// maxRetries=3 means exactly 4 runs on persistent failure.
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if len(res.Attempts) != 4 {
		t.Errorf("len(Attempts) = %d, want 4", len(res.Attempts))
	}
	if !errors.Is(res.LastErr(), errNetwork) {
		t.Errorf("LastErr() = %v, want errNetwork", res.LastErr())
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy(0), func(context.Context) error {
		calls++
		return errNetwork
	})

	if !errors.Is(err, errNetwork) {
		t.Fatalf("Do() = %v, want errNetwork", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	errAuth := cascade.WithKind(cascade.KindAuthentication, errors.New("token rejected"))
	_, err := retry.Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return errAuth
	})

	if !errors.Is(err, errAuth) {
		t.Fatalf("Do() = %v, want errAuth", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (authentication is not retryable)", calls)
	}
}

func TestDo_ExplicitKindBeatsMessage(t *testing.T) {
	// Message looks transient but the explicit kind says otherwise.
	calls := 0
	err := cascade.WithKind(cascade.KindValidation, errors.New("connection refused"))
	_, _ = retry.Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return err
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_TokensOverrideKind(t *testing.T) {
	// "permission denied" classifies as authorization (not retryable),
	// but an explicit token whitelists it.
	p := fastPolicy(2)
	p.Tokens = []string{"permission denied"}

	calls := 0
	_, _ = retry.Do(context.Background(), p, func(context.Context) error {
		calls++
		return errors.New("permission denied by gateway")
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3 (token makes it retryable)", calls)
	}
}

func TestDo_CircuitOpenNotRetried(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return cascade.ErrCircuitOpen
	})

	if !errors.Is(err, cascade.ErrCircuitOpen) {
		t.Fatalf("Do() = %v, want ErrCircuitOpen", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_MaxTotalBudget(t *testing.T) {
	p := retry.Policy{
		MaxRetries: 50,
		BaseDelay:  20 * time.Millisecond,
		Strategy:   backoff.KindFixed,
		MaxTotal:   50 * time.Millisecond,
	}

	calls := 0
	_, err := retry.Do(context.Background(), p, func(context.Context) error {
		calls++
		return errNetwork
	})

	if !errors.Is(err, errNetwork) {
		t.Fatalf("Do() = %v, want errNetwork", err)
	}
	if calls < 2 || calls > 5 {
		t.Errorf("calls = %d, want a handful bounded by the 50ms budget", calls)
	}
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := retry.Policy{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Strategy:   backoff.KindFixed,
	}

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := retry.Do(ctx, p, func(context.Context) error {
		calls++
		return errNetwork
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (canceled during first wait)", calls)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("len(Attempts) = %d, want 1 (history preserved)", len(res.Attempts))
	}
}

func TestDo_OperationReturningCanceledNotRetried(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return context.Canceled
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	p := fastPolicy(5)
	p.Classifier = func(err error) bool {
		return err.Error() == "try me"
	}

	calls := 0
	_, _ = retry.Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("try me")
		}
		return errors.New("give up")
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_PolicyShouldRetryDelegates(t *testing.T) {
	errAuth := cascade.WithKind(cascade.KindAuthentication, errors.New("token rejected"))

	calls := 0
	policy := retry.Policy{
		// Ignored once the predicate is set: it owns the budget, and it
		// retries an error the default classifier would refuse.
		MaxRetries: 0,
		ShouldRetry: func(_ context.Context, attempt int, _ error) bool {
			return attempt < 2
		},
	}
	res, err := retry.Do(context.Background(), policy, func(context.Context) error {
		calls++
		return errAuth
	})

	if !errors.Is(err, errAuth) {
		t.Fatalf("Do() = %v, want errAuth", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if res.Retries() != 2 {
		t.Errorf("Retries() = %d, want 2", res.Retries())
	}
}

func TestDoWithShouldRetry(t *testing.T) {
	var seen []int
	calls := 0
	res, err := retry.DoWithShouldRetry(context.Background(),
		func(context.Context) error {
			calls++
			return errNetwork
		},
		func(_ context.Context, attempt int, err error) bool {
			seen = append(seen, attempt)
			if !errors.Is(err, errNetwork) {
				t.Errorf("predicate got %v, want errNetwork", err)
			}
			return attempt < 2
		})

	if !errors.Is(err, errNetwork) {
		t.Fatalf("DoWithShouldRetry() = %v, want errNetwork", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("predicate saw attempts %v, want [0 1 2]", seen)
	}
	if res.Retries() != 2 {
		t.Errorf("Retries() = %d, want 2", res.Retries())
	}
}

func TestDoWithShouldRetry_SucceedsEarly(t *testing.T) {
	calls := 0
	res, err := retry.DoWithShouldRetry(context.Background(),
		func(context.Context) error {
			calls++
			if calls < 2 {
				return errNetwork
			}
			return nil
		},
		func(context.Context, int, error) bool { return true })

	if err != nil {
		t.Fatalf("DoWithShouldRetry() = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got := res.LastErr(); got != nil {
		t.Errorf("LastErr() = %v, want nil", got)
	}
}

func TestDoWithShouldRetry_ContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := retry.DoWithShouldRetry(ctx,
		func(context.Context) error {
			calls++
			return errNetwork
		},
		func(context.Context, int, error) bool {
			cancel()
			return true
		})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DoWithShouldRetry() = %v, want Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := retry.DefaultPolicy()

	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.BaseDelay != 100*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 100ms", p.BaseDelay)
	}
	if p.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", p.MaxDelay)
	}
	if p.Strategy != backoff.KindExponential {
		t.Errorf("Strategy = %q, want exponential", p.Strategy)
	}
}
