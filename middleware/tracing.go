package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cascade/workflow"
)

// tracerName is the instrumentation scope name for cascade tracing.
const tracerName = "github.com/xraph/cascade"

// Tracing returns middleware that wraps each step attempt in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: cascade.execution.id, cascade.workflow.id,
// cascade.step.id, cascade.step.kind, cascade.backend,
// cascade.retry_count. On error, the span status is set to codes.Error
// with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, sr *workflow.StepRun, next Handler) error {
		ctx, span := tracer.Start(ctx, "cascade.step.execute",
			trace.WithAttributes(
				attribute.String("cascade.execution.id", sr.Execution.ID.String()),
				attribute.String("cascade.workflow.id", sr.Execution.WorkflowID),
				attribute.String("cascade.step.id", sr.Step.ID),
				attribute.String("cascade.step.kind", sr.Step.Kind),
				attribute.String("cascade.backend", sr.Step.Backend),
				attribute.Int("cascade.retry_count", sr.Result.RetryCount),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
