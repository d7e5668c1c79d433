// Package queue provides the two structures under the queue manager:
// a priority heap of pending tasks with lazy deletion of cancelled entries,
// and a resizable counting permit pool bounding concurrent execution.
//
// # Ordering
//
// [PriorityQueue] orders tasks by priority (HIGH before MEDIUM before LOW)
// with FIFO tie-break on creation time within a priority. Cancellation of a
// queued task is lazy: the id is recorded in a cancelled set and the heap
// entry silently discarded when it surfaces, avoiding an O(n) heap scan per
// cancel. The zombie entries this leaves behind are an accepted tradeoff.
//
// # Permits
//
//	lim := queue.NewLimiter(5)
//	if err := lim.Acquire(ctx); err != nil { ... }
//	defer lim.Release()
//
// [Limiter] capacity is mutable at runtime; a shrink takes effect as permits
// are released and never preempts running work.
//
// PriorityQueue is not safe for concurrent use — the manager guards it with
// its own mutex. Limiter synchronises internally.
package queue
