package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/bermudi/botitibot/task"
)

// Named entry types pair an event implementation with the hook name
// captured at registration time. This avoids type-asserting back to Hook
// inside the emit methods.
type taskEnqueuedEntry struct {
	name string
	hook TaskEnqueued
}

type taskStartedEntry struct {
	name string
	hook TaskStarted
}

type taskCompletedEntry struct {
	name string
	hook TaskCompleted
}

type taskFailedEntry struct {
	name string
	hook TaskFailed
}

type taskRetryingEntry struct {
	name string
	hook TaskRetrying
}

type taskRateLimitedEntry struct {
	name string
	hook TaskRateLimited
}

type taskCancelledEntry struct {
	name string
	hook TaskCancelled
}

type cycleCompletedEntry struct {
	name string
	hook CycleCompleted
}

type platformDisabledEntry struct {
	name string
	hook PlatformDisabled
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to them.
// It type-caches hooks at registration time so emit calls iterate only over
// hooks that implement the relevant event. Hook errors are logged, never
// propagated: observers must not break dispatch.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	taskEnqueued     []taskEnqueuedEntry
	taskStarted      []taskStartedEntry
	taskCompleted    []taskCompletedEntry
	taskFailed       []taskFailedEntry
	taskRetrying     []taskRetryingEntry
	taskRateLimited  []taskRateLimitedEntry
	taskCancelled    []taskCancelledEntry
	cycleCompleted   []cycleCompletedEntry
	platformDisabled []platformDisabledEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(TaskEnqueued); ok {
		r.taskEnqueued = append(r.taskEnqueued, taskEnqueuedEntry{name, e})
	}
	if e, ok := h.(TaskStarted); ok {
		r.taskStarted = append(r.taskStarted, taskStartedEntry{name, e})
	}
	if e, ok := h.(TaskCompleted); ok {
		r.taskCompleted = append(r.taskCompleted, taskCompletedEntry{name, e})
	}
	if e, ok := h.(TaskFailed); ok {
		r.taskFailed = append(r.taskFailed, taskFailedEntry{name, e})
	}
	if e, ok := h.(TaskRetrying); ok {
		r.taskRetrying = append(r.taskRetrying, taskRetryingEntry{name, e})
	}
	if e, ok := h.(TaskRateLimited); ok {
		r.taskRateLimited = append(r.taskRateLimited, taskRateLimitedEntry{name, e})
	}
	if e, ok := h.(TaskCancelled); ok {
		r.taskCancelled = append(r.taskCancelled, taskCancelledEntry{name, e})
	}
	if e, ok := h.(CycleCompleted); ok {
		r.cycleCompleted = append(r.cycleCompleted, cycleCompletedEntry{name, e})
	}
	if e, ok := h.(PlatformDisabled); ok {
		r.platformDisabled = append(r.platformDisabled, platformDisabledEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

func (r *Registry) hookError(name, event string, err error) {
	r.logger.Warn("hook error",
		slog.String("hook", name),
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// EmitTaskEnqueued notifies TaskEnqueued hooks.
func (r *Registry) EmitTaskEnqueued(ctx context.Context, t *task.Task) {
	for _, e := range r.taskEnqueued {
		if err := e.hook.OnTaskEnqueued(ctx, t); err != nil {
			r.hookError(e.name, "task_enqueued", err)
		}
	}
}

// EmitTaskStarted notifies TaskStarted hooks.
func (r *Registry) EmitTaskStarted(ctx context.Context, t *task.Task) {
	for _, e := range r.taskStarted {
		if err := e.hook.OnTaskStarted(ctx, t); err != nil {
			r.hookError(e.name, "task_started", err)
		}
	}
}

// EmitTaskCompleted notifies TaskCompleted hooks.
func (r *Registry) EmitTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) {
	for _, e := range r.taskCompleted {
		if err := e.hook.OnTaskCompleted(ctx, t, elapsed); err != nil {
			r.hookError(e.name, "task_completed", err)
		}
	}
}

// EmitTaskFailed notifies TaskFailed hooks.
func (r *Registry) EmitTaskFailed(ctx context.Context, t *task.Task, taskErr error) {
	for _, e := range r.taskFailed {
		if err := e.hook.OnTaskFailed(ctx, t, taskErr); err != nil {
			r.hookError(e.name, "task_failed", err)
		}
	}
}

// EmitTaskRetrying notifies TaskRetrying hooks.
func (r *Registry) EmitTaskRetrying(ctx context.Context, t *task.Task, attempt int) {
	for _, e := range r.taskRetrying {
		if err := e.hook.OnTaskRetrying(ctx, t, attempt); err != nil {
			r.hookError(e.name, "task_retrying", err)
		}
	}
}

// EmitTaskRateLimited notifies TaskRateLimited hooks.
func (r *Registry) EmitTaskRateLimited(ctx context.Context, t *task.Task, op string, backoff time.Duration) {
	for _, e := range r.taskRateLimited {
		if err := e.hook.OnTaskRateLimited(ctx, t, op, backoff); err != nil {
			r.hookError(e.name, "task_rate_limited", err)
		}
	}
}

// EmitTaskCancelled notifies TaskCancelled hooks.
func (r *Registry) EmitTaskCancelled(ctx context.Context, taskID string) {
	for _, e := range r.taskCancelled {
		if err := e.hook.OnTaskCancelled(ctx, taskID); err != nil {
			r.hookError(e.name, "task_cancelled", err)
		}
	}
}

// EmitCycleCompleted notifies CycleCompleted hooks.
func (r *Registry) EmitCycleCompleted(ctx context.Context, loop string, elapsed time.Duration) {
	for _, e := range r.cycleCompleted {
		if err := e.hook.OnCycleCompleted(ctx, loop, elapsed); err != nil {
			r.hookError(e.name, "cycle_completed", err)
		}
	}
}

// EmitPlatformDisabled notifies PlatformDisabled hooks.
func (r *Registry) EmitPlatformDisabled(ctx context.Context, platform string, platErr error) {
	for _, e := range r.platformDisabled {
		if err := e.hook.OnPlatformDisabled(ctx, platform, platErr); err != nil {
			r.hookError(e.name, "platform_disabled", err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.hookError(e.name, "shutdown", err)
		}
	}
}
