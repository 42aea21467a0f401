package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/cascade/retry"
	"github.com/xraph/cascade/workflow"
)

// engineMetrics holds the run-level OTel instruments. Step-level
// metrics live in the middleware; these cover the engine's own view:
// execution outcomes, retry outcomes, breaker states, and DLQ depth.
//
// Instruments are created once at engine construction. On error the
// OTel API returns noop instruments, so a missing MeterProvider
// degrades to a pass-through.
type engineMetrics struct {
	executions metric.Int64Counter
	retries    metric.Int64Counter
}

func newEngineMetrics(mp metric.MeterProvider, e *Engine) *engineMetrics {
	var meter metric.Meter
	if mp != nil {
		meter = mp.Meter(scopeName)
	} else {
		meter = otel.Meter(scopeName)
	}

	m := &engineMetrics{}

	var err error
	m.executions, err = meter.Int64Counter(
		"cascade.executions",
		metric.WithDescription("Workflow executions by terminal status"),
		metric.WithUnit("{execution}"),
	)
	_ = err // noop fallback guaranteed by OTel API contract

	m.retries, err = meter.Int64Counter(
		"cascade.retries",
		metric.WithDescription("Step retries by ladder outcome"),
		metric.WithUnit("{retry}"),
	)
	_ = err

	breakerState, bErr := meter.Int64ObservableGauge(
		"cascade.breaker.state",
		metric.WithDescription("Circuit breaker state per backend (0 closed, 1 open, 2 half-open)"),
	)
	_ = bErr

	dlqSize, sErr := meter.Int64ObservableGauge(
		"cascade.dlq.size",
		metric.WithDescription("Messages currently held in the dead letter queue"),
		metric.WithUnit("{message}"),
	)
	_ = sErr

	dlqOldest, oErr := meter.Float64ObservableGauge(
		"cascade.dlq.oldest_age",
		metric.WithDescription("Age of the oldest dead letter queue message in seconds"),
		metric.WithUnit("s"),
	)
	_ = oErr

	_, cbErr := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for backend, st := range e.breakers.States() {
			o.ObserveInt64(breakerState, int64(st),
				metric.WithAttributes(attribute.String("backend", backend)))
		}
		if e.queue != nil {
			o.ObserveInt64(dlqSize, int64(e.queue.Size()))
			o.ObserveFloat64(dlqOldest, e.queue.OldestAge().Seconds())
		}
		return nil
	}, breakerState, dlqSize, dlqOldest)
	_ = cbErr

	return m
}

func (m *engineMetrics) recordExecution(ctx context.Context, status workflow.Status) {
	m.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
	))
}

// recordRetries counts the retries one ladder consumed, tagged by
// whether the ladder ultimately succeeded.
func (m *engineMetrics) recordRetries(ctx context.Context, res *retry.Result, finalErr error) {
	n := res.Retries()
	if n == 0 {
		return
	}
	outcome := "success"
	if finalErr != nil {
		outcome = "failure"
	}
	m.retries.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
