package queue

import (
	"container/heap"

	"github.com/bermudi/botitibot/task"
)

// PriorityQueue is a binary min-heap of pending tasks ordered by priority
// with FIFO tie-break on creation time. Cancellation is lazy: the entry
// stays in the heap and is silently discarded when it surfaces via Pop.
//
// Each push stamps the entry with a sequence number recorded in the live
// set, so a stale heap entry left behind by a cancel can never shadow a
// later re-push of the same id.
type PriorityQueue struct {
	h    entryHeap
	seq  uint64
	live map[string]uint64
}

// NewPriorityQueue returns an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{live: make(map[string]uint64)}
}

// Push inserts a task. It reports false when a task with the same id is
// already live in the queue.
func (q *PriorityQueue) Push(t *task.Task) bool {
	key := t.ID.String()
	if _, dup := q.live[key]; dup {
		return false
	}
	q.seq++
	q.live[key] = q.seq
	heap.Push(&q.h, entry{t: t, seq: q.seq})
	return true
}

// Pop removes and returns the highest-priority live task, discarding any
// cancelled or stale entries that surface first. Returns nil when the
// queue holds no live tasks.
func (q *PriorityQueue) Pop() *task.Task {
	for q.h.Len() > 0 {
		e := heap.Pop(&q.h).(entry)
		key := e.t.ID.String()
		if q.live[key] != e.seq {
			continue // zombie left by a cancel or re-push
		}
		delete(q.live, key)
		return e.t
	}
	return nil
}

// Peek returns the highest-priority live task without removing it, popping
// off any zombie entries it encounters on the way.
func (q *PriorityQueue) Peek() *task.Task {
	for q.h.Len() > 0 {
		e := q.h[0]
		if q.live[e.t.ID.String()] == e.seq {
			return e.t
		}
		heap.Pop(&q.h)
	}
	return nil
}

// Cancel marks a queued task id for lazy deletion. It reports false when
// the id is not live in the queue.
func (q *PriorityQueue) Cancel(taskID string) bool {
	if _, ok := q.live[taskID]; !ok {
		return false
	}
	delete(q.live, taskID)
	return true
}

// Len returns the number of live tasks.
func (q *PriorityQueue) Len() int { return len(q.live) }

// Contains reports whether the id is live in the queue.
func (q *PriorityQueue) Contains(taskID string) bool {
	_, ok := q.live[taskID]
	return ok
}

type entry struct {
	t   *task.Task
	seq uint64
}

// entryHeap implements heap.Interface over the task ordering invariant.
type entryHeap []entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].t.Before(h[j].t) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return e
}
