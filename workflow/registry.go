package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/cascade"
)

// HandlerFunc executes one step. It receives the step being run and
// the execution payload, and returns the step output.
type HandlerFunc func(ctx context.Context, step *Step, payload json.RawMessage) (json.RawMessage, error)

// Registry maps step kinds to handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a step kind. Registering a kind twice
// returns cascade.ErrKindRegistered.
func (r *Registry) Register(kind string, h HandlerFunc) error {
	if kind == "" {
		return fmt.Errorf("%w: kind is empty", cascade.ErrInvalidDefinition)
	}
	if h == nil {
		return fmt.Errorf("%w: handler for kind %q is nil", cascade.ErrInvalidDefinition, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[kind]; dup {
		return fmt.Errorf("%w: %q", cascade.ErrKindRegistered, kind)
	}
	r.handlers[kind] = h
	return nil
}

// Handler returns the handler for the given kind.
// Returns false if no handler is registered.
func (r *Registry) Handler(kind string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns all registered step kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// RegisterKind registers a typed step handler. The generic handler is
// wrapped in a closure that JSON-unmarshals the step config into T
// before calling the typed handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterKind[T any](r *Registry, kind string, h func(ctx context.Context, cfg T, payload json.RawMessage) (json.RawMessage, error)) error {
	wrapped := func(ctx context.Context, step *Step, payload json.RawMessage) (json.RawMessage, error) {
		var cfg T
		if len(step.Config) > 0 {
			if err := json.Unmarshal(step.Config, &cfg); err != nil {
				return nil, cascade.WithKind(cascade.KindValidation,
					fmt.Errorf("unmarshal config for step %q: %w", step.ID, err))
			}
		}
		return h(ctx, cfg, payload)
	}
	return r.Register(kind, wrapped)
}
