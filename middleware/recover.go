package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/bermudi/botitibot/task"
)

// Recover returns middleware that recovers from panics in the work unit.
// Panics are converted to errors and logged with a stack trace, so a bad
// work unit fails its task instead of crashing the dispatch loop.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) (v any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("work unit panicked",
					slog.String("task_kind", t.Kind),
					slog.String("task_id", t.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				v = nil
				retErr = fmt.Errorf("panic in task %s: %v", t.Kind, r)
			}
		}()
		return next(ctx)
	}
}
