// Package manager implements the queue manager: the dispatch loop that
// drains the priority queue under a concurrency bound, the execution step
// that runs work units through middleware and classifies their outcome,
// and the bookkeeping that tracks every accepted task from enqueue to its
// terminal status.
//
// A Manager owns one priority queue, one concurrency limiter, and one
// rate-limit coordinator. Tasks enter through AddTask, run at most
// MaxConcurrentTasks at a time in creation order within each priority
// band, and leave a Result behind that survives until shutdown. Transient
// failures re-enter the queue after a backoff delay at their original
// priority; rate-limit signals defer the task behind the operation's
// throttle window without consuming a retry.
package manager
