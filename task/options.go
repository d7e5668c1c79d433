package task

import (
	"time"

	"github.com/bermudi/botitibot/id"
)

// Option configures a Task at construction time.
type Option func(*Task)

// WithID overrides the generated task id. Used when rehydrating persisted
// tasks so callers holding the old id can still cancel and query them.
func WithID(tid id.TaskID) Option {
	return func(t *Task) { t.ID = tid }
}

// WithPriority sets the dispatch priority.
func WithPriority(p Priority) Option {
	return func(t *Task) { t.Priority = p }
}

// WithMaxRetries sets the transient-failure retry budget.
func WithMaxRetries(n int) Option {
	return func(t *Task) { t.MaxRetries = n }
}

// WithOperation classifies the task under a rate-limit operation type
// ("read", "write", "auth"). Unclassified tasks bypass throttle checks.
func WithOperation(op string) Option {
	return func(t *Task) { t.Op = op }
}

// WithPayload attaches the serialized arguments mirrored to the store for
// scheduled tasks.
func WithPayload(p []byte) Option {
	return func(t *Task) { t.Payload = p }
}

// WithScheduledAt marks the task for persistence with the given scheduled
// time so it can be reloaded after a restart.
func WithScheduledAt(at time.Time) Option {
	return func(t *Task) { t.ScheduledAt = at.UTC() }
}

// WithCreatedAt overrides the creation timestamp. Used when rehydrating
// persisted tasks so they keep their original queue position.
func WithCreatedAt(at time.Time) Option {
	return func(t *Task) { t.CreatedAt = at.UTC() }
}
