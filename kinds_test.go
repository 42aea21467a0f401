package cascade_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

func TestKindOf_ExplicitKindWins(t *testing.T) {
	t.Parallel()

	// The message would classify as network, but the explicit kind
	// must take precedence.
	err := cascade.WithKind(cascade.KindAuthorization, errors.New("connection refused"))
	if got := cascade.KindOf(err); got != cascade.KindAuthorization {
		t.Errorf("KindOf = %q, want %q", got, cascade.KindAuthorization)
	}
}

func TestKindOf_WrappedExplicitKind(t *testing.T) {
	t.Parallel()

	inner := cascade.WithKind(cascade.KindNetwork, errors.New("dial tcp"))
	wrapped := fmt.Errorf("step call: %w", inner)

	if got := cascade.KindOf(wrapped); got != cascade.KindNetwork {
		t.Errorf("KindOf = %q, want %q", got, cascade.KindNetwork)
	}
}

func TestKindOf_ContextErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"deadline", context.DeadlineExceeded},
		{"canceled", context.Canceled},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cascade.KindOf(tt.err); got != cascade.KindTimeout {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, cascade.KindTimeout)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want cascade.ErrorKind
	}{
		{"request timed out after 5s", cascade.KindTimeout},
		{"context deadline exceeded", cascade.KindTimeout},
		{"connection refused", cascade.KindNetwork},
		{"dial tcp: no such host", cascade.KindNetwork},
		{"read: connection reset by peer", cascade.KindNetwork},
		{"401 Unauthorized", cascade.KindAuthentication},
		{"invalid token", cascade.KindAuthentication},
		{"403 Forbidden", cascade.KindAuthorization},
		{"permission denied for resource", cascade.KindAuthorization},
		{"validation failed on field x", cascade.KindValidation},
		{"malformed step config", cascade.KindValidation},
		{"boom", cascade.KindExecution},
		{"step returned failure", cascade.KindExecution},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := cascade.Classify(tt.msg); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.msg, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind cascade.ErrorKind
		want bool
	}{
		{cascade.KindNetwork, true},
		{cascade.KindTimeout, true},
		{cascade.KindExecution, true},
		{cascade.KindValidation, false},
		{cascade.KindAuthentication, false},
		{cascade.KindAuthorization, false},
		{cascade.KindSystem, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Retryable(); got != tt.want {
				t.Errorf("%q.Retryable() = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestWithKind_NilError(t *testing.T) {
	t.Parallel()

	if err := cascade.WithKind(cascade.KindNetwork, nil); err != nil {
		t.Errorf("WithKind(nil) = %v, want nil", err)
	}
}

func TestContainsToken(t *testing.T) {
	t.Parallel()

	if !cascade.ContainsToken("Dial TCP: Connection Refused", []string{"connection"}) {
		t.Error("expected case-insensitive token match")
	}
	if cascade.ContainsToken("boom", cascade.DefaultRetryableTokens) {
		t.Error("did not expect a retryable token in an opaque message")
	}
}

func TestExecutionContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := cascade.ExecutionIDFrom(ctx); ok {
		t.Error("expected no execution id on fresh context")
	}

	execID := id.NewExecutionID()
	ctx = cascade.WithExecutionID(ctx, execID)
	got, ok := cascade.ExecutionIDFrom(ctx)
	if !ok || got.String() != execID.String() {
		t.Errorf("ExecutionIDFrom = %q, %v; want %q, true", got, ok, execID)
	}

	ctx = cascade.WithStepID(ctx, "charge")
	stepID, ok := cascade.StepIDFrom(ctx)
	if !ok || stepID != "charge" {
		t.Errorf("StepIDFrom = %q, %v; want %q, true", stepID, ok, "charge")
	}
}
