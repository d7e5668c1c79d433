package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bermudi/botitibot/task"
)

// tracerName is the instrumentation scope name for queue tracing.
const tracerName = "github.com/bermudi/botitibot"

// Tracing returns middleware that wraps task execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: botitibot.task.id, botitibot.task.kind,
// botitibot.task.priority, botitibot.task.op, botitibot.retry_count.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) (any, error) {
		ctx, span := tracer.Start(ctx, "botitibot.task.execute",
			trace.WithAttributes(
				attribute.String("botitibot.task.id", t.ID.String()),
				attribute.String("botitibot.task.kind", t.Kind),
				attribute.String("botitibot.task.priority", t.Priority.String()),
				attribute.String("botitibot.task.op", t.Op),
				attribute.Int("botitibot.retry_count", t.Retries),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		v, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return v, err
	}
}
