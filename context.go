package botitibot

import "context"

type taskIDKey struct{}

// WithTaskID returns a context carrying the executing task's ID. The manager
// sets it before invoking a work unit so collaborators can tag their logs.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskIDFrom extracts the executing task's ID from ctx, if present.
func TaskIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskIDKey{}).(string)
	return id, ok
}
