// Package task defines the unit of work the queue manager dispatches:
// the Task record with its priority and ordering metadata, the Result
// record tracking a task's lifecycle, and the persistence contract for
// scheduled tasks.
package task

import (
	"context"
	"time"

	"github.com/bermudi/botitibot/id"
)

// Priority orders tasks in the pending queue. Lower values dispatch first.
type Priority int

const (
	// PriorityHigh tasks dispatch before everything else.
	PriorityHigh Priority = 1
	// PriorityMedium is the default for scheduler-generated work.
	PriorityMedium Priority = 2
	// PriorityLow tasks run only when nothing more urgent is pending.
	PriorityLow Priority = 3
)

// String returns the conventional name stored in the database.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	default:
		return "MEDIUM"
	}
}

// ParsePriority maps a stored priority name back to a Priority.
// Unknown names fall back to PriorityMedium.
func ParsePriority(s string) Priority {
	switch s {
	case "HIGH":
		return PriorityHigh
	case "LOW":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Status represents the lifecycle state of a task.
type Status string

const (
	// StatusQueued means the task is waiting in the priority queue.
	StatusQueued Status = "queued"
	// StatusRunning means an execution step is currently running the task.
	StatusRunning Status = "running"
	// StatusCompleted means the work unit finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the task exhausted its retry budget.
	StatusFailed Status = "failed"
	// StatusCancelled means the task was cancelled before or during execution.
	StatusCancelled Status = "cancelled"
	// StatusRateLimited means the task is deferred behind a throttle window
	// and will re-enter the queue when the backoff elapses.
	StatusRateLimited Status = "rate_limited"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Fn is the work unit a task wraps. Arguments are captured in the closure.
// The context carries the cancellation token; cooperative units must observe
// it at their I/O suspension points.
type Fn func(ctx context.Context) (any, error)

// Task is a unit of work with priority and ordering metadata. The dispatch
// loop treats it as immutable except for the Retries counter, which the
// execution step increments on transient failures.
type Task struct {
	ID         id.TaskID
	Kind       string
	Priority   Priority
	CreatedAt  time.Time
	Op         string
	Payload    []byte
	Fn         Fn
	MaxRetries int
	Retries    int

	// ScheduledAt, when non-zero, asks the manager to mirror the task into
	// the persistence collaborator so it survives a restart.
	ScheduledAt time.Time
}

// New creates a task with a fresh TaskID, medium priority, and a retry
// budget of 3, then applies opts.
func New(kind string, fn Fn, opts ...Option) *Task {
	t := &Task{
		ID:         id.NewTaskID(),
		Kind:       kind,
		Priority:   PriorityMedium,
		CreatedAt:  time.Now().UTC(),
		Fn:         fn,
		MaxRetries: 3,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Before reports whether t orders ahead of other in the pending queue:
// strictly better priority, or equal priority and earlier creation.
func (t *Task) Before(other *Task) bool {
	if t.Priority != other.Priority {
		return t.Priority < other.Priority
	}
	return t.CreatedAt.Before(other.CreatedAt)
}

// Result is the in-flight or terminal record for a task id.
type Result struct {
	Status      Status
	Value       any
	Err         string
	Retries     int
	StartedAt   *time.Time
	CompletedAt *time.Time
}
