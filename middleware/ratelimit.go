package middleware

import (
	"context"

	botitibot "github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/ratelimit"
	"github.com/bermudi/botitibot/task"
)

// RateLimit returns middleware that guards outbound calls with the
// rate-limit coordinator. The task's operation type arrives as explicit
// context on the task record, never inferred from names.
//
// While the operation's window is exhausted the work unit is not invoked
// at all: the guard short-circuits with a *botitibot.RateLimitError
// carrying the remaining delay, which the manager treats like any other
// rate-limit signal (defer and re-queue, no retry consumed). Otherwise one
// unit of budget is consumed before the attempt is made.
func RateLimit(coordinator *ratelimit.Coordinator) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) (any, error) {
		if t.Op == "" {
			return next(ctx)
		}
		if coordinator.IsLimited(t.Op) {
			return nil, botitibot.NewRateLimitError(t.Op, coordinator.Delay(t.Op))
		}
		coordinator.Decrement(t.Op)
		return next(ctx)
	}
}
