package engine

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/admission"
	"github.com/xraph/cascade/breaker"
	"github.com/xraph/cascade/dlq"
	"github.com/xraph/cascade/ext"
	mw "github.com/xraph/cascade/middleware"
	"github.com/xraph/cascade/retry"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/workflow"
)

// scopeName is the OTel instrumentation scope for engine telemetry.
const scopeName = "github.com/xraph/cascade"

// builder collects option state that New applies after all options ran,
// so outcomes do not depend on option order.
type builder struct {
	extensions     []ext.Extension
	middlewares    []mw.Middleware
	handlers       []namedHandler
	breakerConfigs map[string]breaker.Config
	dlqConfig      *dlq.Config
	schedEnabled   bool
	schedOpts      []schedule.Option
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

type namedHandler struct {
	kind string
	fn   workflow.HandlerFunc
}

// Option configures an Engine.
type Option func(*Engine, *builder) error

// WithConfig replaces the engine-wide defaults.
func WithConfig(cfg cascade.Config) Option {
	return func(e *Engine, _ *builder) error {
		e.cfg = cfg
		return nil
	}
}

// WithLogger sets the structured logger used by the engine and every
// component it owns.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine, _ *builder) error {
		if l == nil {
			return fmt.Errorf("cascade: engine logger is nil")
		}
		e.logger = l
		return nil
	}
}

// WithRegistry replaces the step handler registry. Handlers added via
// WithHandler register into the replacement.
func WithRegistry(r *workflow.Registry) Option {
	return func(e *Engine, _ *builder) error {
		if r == nil {
			return fmt.Errorf("cascade: step registry is nil")
		}
		e.registry = r
		return nil
	}
}

// WithHandler registers a step handler for a kind.
func WithHandler(kind string, fn workflow.HandlerFunc) Option {
	return func(_ *Engine, b *builder) error {
		b.handlers = append(b.handlers, namedHandler{kind: kind, fn: fn})
		return nil
	}
}

// WithMiddleware appends middleware to the per-step chain, after the
// default stack.
func WithMiddleware(mws ...mw.Middleware) Option {
	return func(_ *Engine, b *builder) error {
		b.middlewares = append(b.middlewares, mws...)
		return nil
	}
}

// WithRetryPolicy sets the default retry policy for steps that declare
// none of their own.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine, _ *builder) error {
		e.retryDefault = p
		return nil
	}
}

// WithBreakers replaces the per-backend circuit breaker group.
func WithBreakers(g *breaker.Group) Option {
	return func(e *Engine, _ *builder) error {
		if g == nil {
			return fmt.Errorf("cascade: breaker group is nil")
		}
		e.breakers = g
		return nil
	}
}

// WithBreakerConfig overrides the breaker thresholds for one backend.
func WithBreakerConfig(backend string, cfg breaker.Config) Option {
	return func(_ *Engine, b *builder) error {
		if backend == "" {
			return fmt.Errorf("cascade: breaker backend is empty")
		}
		if b.breakerConfigs == nil {
			b.breakerConfigs = make(map[string]breaker.Config)
		}
		b.breakerConfigs[backend] = cfg
		return nil
	}
}

// WithDLQ enables the dead letter queue. Failed and timed-out
// executions are handed to it, and its sweeper requeues them through
// the engine.
func WithDLQ(cfg dlq.Config) Option {
	return func(_ *Engine, b *builder) error {
		b.dlqConfig = &cfg
		return nil
	}
}

// WithAdmission installs a submission gate consulted before every
// execution.
func WithAdmission(g *admission.Gate) Option {
	return func(e *Engine, _ *builder) error {
		e.gate = g
		return nil
	}
}

// WithScheduler enables the cron scheduler, wired to submit entries
// into this engine.
func WithScheduler(opts ...schedule.Option) Option {
	return func(_ *Engine, b *builder) error {
		b.schedEnabled = true
		b.schedOpts = append(b.schedOpts, opts...)
		return nil
	}
}

// WithExtension registers a lifecycle extension.
func WithExtension(x ext.Extension) Option {
	return func(_ *Engine, b *builder) error {
		if x == nil {
			return fmt.Errorf("cascade: extension is nil")
		}
		b.extensions = append(b.extensions, x)
		return nil
	}
}

// WithTracerProvider sets a custom OTel TracerProvider. When unset the
// global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(_ *Engine, b *builder) error {
		b.tracerProvider = tp
		return nil
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for both the
// per-step metrics middleware and the engine-level instruments. When
// unset the global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(_ *Engine, b *builder) error {
		b.meterProvider = mp
		return nil
	}
}
