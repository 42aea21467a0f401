package cascade

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind categorizes a step or run failure. Kinds drive retry
// decisions and tag the errors recorded on an execution.
type ErrorKind string

// Error kind constants.
const (
	// KindValidation marks a malformed definition or input. Fatal, never retried.
	KindValidation ErrorKind = "validation"
	// KindExecution marks a generic step failure. Retryable by default.
	KindExecution ErrorKind = "execution"
	// KindTimeout marks a call- or run-level deadline. Retryable at the
	// call level; fatal at the run level once the run budget is spent.
	KindTimeout ErrorKind = "timeout"
	// KindNetwork marks a transport failure reaching a backend. Retryable.
	KindNetwork ErrorKind = "network"
	// KindAuthentication marks rejected credentials. Not retryable.
	KindAuthentication ErrorKind = "authentication"
	// KindAuthorization marks a permission denial. Not retryable.
	KindAuthorization ErrorKind = "authorization"
	// KindSystem marks an engine-internal fault. Not retryable.
	KindSystem ErrorKind = "system"
)

// Retryable reports whether errors of this kind are retried by default.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindExecution:
		return true
	default:
		return false
	}
}

// KindError wraps an error with an explicit kind. Step handlers should
// return kinded errors so retry decisions don't depend on message text.
type KindError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *KindError) Unwrap() error { return e.Err }

// WithKind wraps err with an explicit error kind.
// Returns nil if err is nil.
func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// ExplicitKind reports the kind a handler attached via WithKind, walking
// the wrap chain. ok is false when no explicit kind is present.
func ExplicitKind(err error) (kind ErrorKind, ok bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}

// KindOf resolves the kind of any error: an explicit kind wins, context
// deadline/cancel map to timeout, everything else falls back to message
// classification.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if kind, ok := ExplicitKind(err); ok {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return Classify(err.Error())
}

// Classify maps an error message to a kind by substring scanning.
// This is the legacy fallback for opaque third-party errors; prefer
// WithKind in handlers. The scan is case-insensitive and ordered so the
// more specific families match first.
func Classify(msg string) ErrorKind {
	m := strings.ToLower(msg)

	switch {
	case containsAny(m, "timeout", "timed out", "deadline exceeded"):
		return KindTimeout
	case containsAny(m, "connection", "network", "unreachable", "no such host",
		"broken pipe", "reset by peer", "refused"):
		return KindNetwork
	case containsAny(m, "unauthorized", "unauthenticated", "invalid credentials",
		"invalid token", "authentication"):
		return KindAuthentication
	case containsAny(m, "forbidden", "permission denied", "access denied",
		"not allowed"):
		return KindAuthorization
	case containsAny(m, "validation", "malformed", "invalid definition",
		"invalid payload"):
		return KindValidation
	default:
		return KindExecution
	}
}

// DefaultRetryableTokens is the fallback token list consulted when an
// error carries no explicit kind. Callers may supply their own list per
// retry policy.
var DefaultRetryableTokens = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection",
	"network",
	"unreachable",
	"reset by peer",
	"broken pipe",
	"temporarily unavailable",
	"service unavailable",
	"too many requests",
	"eof",
}

// ContainsToken reports whether the message contains any of the given
// tokens, case-insensitively.
func ContainsToken(msg string, tokens []string) bool {
	m := strings.ToLower(msg)
	for _, tok := range tokens {
		if strings.Contains(m, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

func containsAny(m string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}
