package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/bermudi/botitibot/observability"
	"github.com/bermudi/botitibot/ratelimit"
	"github.com/bermudi/botitibot/task"
)

func newTestHook() (*observability.MetricsHook, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsHookWithMeter(mp.Meter("test")), reader
}

func newTestTask() *task.Task {
	return task.New("create_post", func(_ context.Context) (any, error) { return nil, nil })
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64] data type", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsHook_Name(t *testing.T) {
	h, _ := newTestHook()
	if h.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", h.Name())
	}
}

func TestMetricsHook_TaskEnqueued(t *testing.T) {
	h, reader := newTestHook()
	if err := h.OnTaskEnqueued(context.Background(), newTestTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.task.enqueued"); got != 1 {
		t.Errorf("enqueued: want 1, got %d", got)
	}
}

func TestMetricsHook_TaskCompleted(t *testing.T) {
	h, reader := newTestHook()
	if err := h.OnTaskCompleted(context.Background(), newTestTask(), 100*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.task.completed"); got != 1 {
		t.Errorf("completed: want 1, got %d", got)
	}
}

func TestMetricsHook_TaskFailed(t *testing.T) {
	h, reader := newTestHook()
	if err := h.OnTaskFailed(context.Background(), newTestTask(), errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.task.failed"); got != 1 {
		t.Errorf("failed: want 1, got %d", got)
	}
}

func TestMetricsHook_TaskRetrying(t *testing.T) {
	h, reader := newTestHook()
	if err := h.OnTaskRetrying(context.Background(), newTestTask(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.task.retried"); got != 1 {
		t.Errorf("retried: want 1, got %d", got)
	}
}

func TestMetricsHook_TaskRateLimited(t *testing.T) {
	h, reader := newTestHook()
	err := h.OnTaskRateLimited(context.Background(), newTestTask(), ratelimit.OpWrite, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.task.rate_limited"); got != 1 {
		t.Errorf("rate_limited: want 1, got %d", got)
	}
}

func TestMetricsHook_TaskCancelled(t *testing.T) {
	h, reader := newTestHook()
	if err := h.OnTaskCancelled(context.Background(), "task_01h2xcejqtf2nbrexx3vqjhp41"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.task.cancelled"); got != 1 {
		t.Errorf("cancelled: want 1, got %d", got)
	}
}

func TestMetricsHook_CycleCompleted(t *testing.T) {
	h, reader := newTestHook()
	if err := h.OnCycleCompleted(context.Background(), "content", 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.scheduler.cycles"); got != 1 {
		t.Errorf("cycles: want 1, got %d", got)
	}
}

func TestMetricsHook_PlatformDisabled(t *testing.T) {
	h, reader := newTestHook()
	if err := h.OnPlatformDisabled(context.Background(), "twitter", errors.New("401")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counterValue(t, reader, "botitibot.platform.disabled"); got != 1 {
		t.Errorf("disabled: want 1, got %d", got)
	}
}
