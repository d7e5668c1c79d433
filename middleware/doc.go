// Package middleware provides composable middleware for work-unit
// execution.
//
// A [Middleware] is a function that wraps a task's work unit. Middleware
// are composed into a chain using [Chain] and applied around every
// execution step. They are applied right-to-left: the first middleware in
// the slice is the outermost wrapper.
//
//	// logging → recover → rate-limit guard → work unit
//	chain := middleware.Chain(
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	    middleware.RateLimit(coordinator),
//	)
//
// # Built-in Middleware
//
//   - [Logging] — logs task kind, id, duration, and outcome
//   - [Recover] — catches panics in work units and converts them to errors
//   - [RateLimit] — short-circuits with a rate-limit signal while the
//     task's operation type is throttled, and consumes budget otherwise
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-task duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, t *task.Task, next middleware.Handler) (any, error) {
//	        // pre-processing
//	        v, err := next(ctx)
//	        // post-processing
//	        return v, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., the rate-limit guard).
package middleware
