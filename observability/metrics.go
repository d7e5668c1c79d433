// Package observability provides an OpenTelemetry-based lifecycle metrics
// hook for the agent. MetricsHook subscribes to queue and scheduler events
// and records system-wide counters for enqueues, completions, failures,
// retries, rate-limit deferrals, cancellations, scheduler cycles, and
// platform disables.
//
// For per-execution tracing and histograms, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bermudi/botitibot/hook"
	"github.com/bermudi/botitibot/task"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/bermudi/botitibot/observability"

// Compile-time interface checks.
var (
	_ hook.Hook             = (*MetricsHook)(nil)
	_ hook.TaskEnqueued     = (*MetricsHook)(nil)
	_ hook.TaskCompleted    = (*MetricsHook)(nil)
	_ hook.TaskFailed       = (*MetricsHook)(nil)
	_ hook.TaskRetrying     = (*MetricsHook)(nil)
	_ hook.TaskRateLimited  = (*MetricsHook)(nil)
	_ hook.TaskCancelled    = (*MetricsHook)(nil)
	_ hook.CycleCompleted   = (*MetricsHook)(nil)
	_ hook.PlatformDisabled = (*MetricsHook)(nil)
)

// MetricsHook records system-wide lifecycle counters. Register it on the
// manager's hook registry to automatically track enqueue rates, completion
// counts, failure rates, retries, rate-limit deferrals, cancellations,
// scheduler cycle timings, and platform disables.
type MetricsHook struct {
	enqueued    metric.Int64Counter
	completed   metric.Int64Counter
	failed      metric.Int64Counter
	retried     metric.Int64Counter
	rateLimited metric.Int64Counter
	cancelled   metric.Int64Counter
	cycles      metric.Int64Counter
	cycleTime   metric.Float64Histogram
	disabled    metric.Int64Counter
}

// NewMetricsHook creates a MetricsHook using the global OTel MeterProvider.
// If no provider is configured, noop instruments are used.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a MetricsHook with the provided meter.
// Use this variant to inject a specific MeterProvider for testing.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		_ = err // noop fallback guaranteed by OTel API contract
		return c
	}

	cycleTime, err := meter.Float64Histogram(
		"botitibot.scheduler.cycle_duration",
		metric.WithDescription("Duration of one scheduler loop cycle in seconds"),
		metric.WithUnit("s"),
	)
	_ = err

	return &MetricsHook{
		enqueued:    counter("botitibot.task.enqueued", "Total tasks accepted into the queue"),
		completed:   counter("botitibot.task.completed", "Total tasks completed successfully"),
		failed:      counter("botitibot.task.failed", "Total tasks that exhausted their retry budget"),
		retried:     counter("botitibot.task.retried", "Total transient-failure retries"),
		rateLimited: counter("botitibot.task.rate_limited", "Total rate-limit deferrals"),
		cancelled:   counter("botitibot.task.cancelled", "Total cancelled tasks"),
		cycles:      counter("botitibot.scheduler.cycles", "Total completed scheduler loop cycles"),
		cycleTime:   cycleTime,
		disabled:    counter("botitibot.platform.disabled", "Total platform disables on auth failure"),
	}
}

// Name implements hook.Hook.
func (m *MetricsHook) Name() string { return "observability-metrics" }

func kindAttrs(t *task.Task) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("task_kind", t.Kind))
}

// OnTaskEnqueued implements hook.TaskEnqueued.
func (m *MetricsHook) OnTaskEnqueued(ctx context.Context, t *task.Task) error {
	m.enqueued.Add(ctx, 1, kindAttrs(t))
	return nil
}

// OnTaskCompleted implements hook.TaskCompleted.
func (m *MetricsHook) OnTaskCompleted(ctx context.Context, t *task.Task, _ time.Duration) error {
	m.completed.Add(ctx, 1, kindAttrs(t))
	return nil
}

// OnTaskFailed implements hook.TaskFailed.
func (m *MetricsHook) OnTaskFailed(ctx context.Context, t *task.Task, _ error) error {
	m.failed.Add(ctx, 1, kindAttrs(t))
	return nil
}

// OnTaskRetrying implements hook.TaskRetrying.
func (m *MetricsHook) OnTaskRetrying(ctx context.Context, t *task.Task, _ int) error {
	m.retried.Add(ctx, 1, kindAttrs(t))
	return nil
}

// OnTaskRateLimited implements hook.TaskRateLimited.
func (m *MetricsHook) OnTaskRateLimited(ctx context.Context, t *task.Task, op string, _ time.Duration) error {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task_kind", t.Kind),
		attribute.String("op", op),
	))
	return nil
}

// OnTaskCancelled implements hook.TaskCancelled.
func (m *MetricsHook) OnTaskCancelled(ctx context.Context, _ string) error {
	m.cancelled.Add(ctx, 1)
	return nil
}

// OnCycleCompleted implements hook.CycleCompleted.
func (m *MetricsHook) OnCycleCompleted(ctx context.Context, loop string, elapsed time.Duration) error {
	attrs := metric.WithAttributes(attribute.String("loop", loop))
	m.cycles.Add(ctx, 1, attrs)
	m.cycleTime.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnPlatformDisabled implements hook.PlatformDisabled.
func (m *MetricsHook) OnPlatformDisabled(ctx context.Context, platform string, _ error) error {
	m.disabled.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
	return nil
}
