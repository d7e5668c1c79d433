// Package hook defines the lifecycle hook system for the agent. Hooks are
// notified of lifecycle events (task enqueued, completed, rate-limited,
// scheduler cycle finished, etc.) and can react to them — logging, metrics,
// alerting.
//
// Each lifecycle event is a separate interface so hooks opt in only to the
// events they care about.
package hook

import (
	"context"
	"time"

	"github.com/bermudi/botitibot/task"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Task lifecycle events
// ──────────────────────────────────────────────────

// TaskEnqueued is called after a task is accepted into the pending queue.
type TaskEnqueued interface {
	OnTaskEnqueued(ctx context.Context, t *task.Task) error
}

// TaskStarted is called when an execution step begins running a task.
type TaskStarted interface {
	OnTaskStarted(ctx context.Context, t *task.Task) error
}

// TaskCompleted is called after a work unit finishes successfully.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) error
}

// TaskFailed is called when a task exhausts its retry budget.
type TaskFailed interface {
	OnTaskFailed(ctx context.Context, t *task.Task, err error) error
}

// TaskRetrying is called when a task fails transiently and re-enters the
// queue at its original priority.
type TaskRetrying interface {
	OnTaskRetrying(ctx context.Context, t *task.Task, attempt int) error
}

// TaskRateLimited is called when a work unit surfaces a rate-limit signal
// and the task is deferred behind the operation's throttle window.
type TaskRateLimited interface {
	OnTaskRateLimited(ctx context.Context, t *task.Task, op string, backoff time.Duration) error
}

// TaskCancelled is called when a task is cancelled, queued or running.
type TaskCancelled interface {
	OnTaskCancelled(ctx context.Context, taskID string) error
}

// ──────────────────────────────────────────────────
// Scheduler events
// ──────────────────────────────────────────────────

// CycleCompleted is called after a scheduler loop finishes one cycle.
type CycleCompleted interface {
	OnCycleCompleted(ctx context.Context, loop string, elapsed time.Duration) error
}

// PlatformDisabled is called when an unauthorized platform response takes a
// platform out of rotation.
type PlatformDisabled interface {
	OnPlatformDisabled(ctx context.Context, platform string, err error) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
