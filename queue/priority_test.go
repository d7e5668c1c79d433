package queue_test

import (
	"testing"
	"time"

	"github.com/bermudi/botitibot/queue"
	"github.com/bermudi/botitibot/task"
)

func newTask(t *testing.T, p task.Priority, created time.Time) *task.Task {
	t.Helper()
	return task.New("test", nil,
		task.WithPriority(p),
		task.WithCreatedAt(created),
	)
}

func TestPriorityQueue_PopOrder(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	low := newTask(t, task.PriorityLow, base)
	high := newTask(t, task.PriorityHigh, base.Add(time.Second))
	medium := newTask(t, task.PriorityMedium, base.Add(2*time.Second))

	q := queue.NewPriorityQueue()
	// Inserted worst-first; pop order must follow priority regardless.
	for _, tk := range []*task.Task{low, high, medium} {
		if !q.Push(tk) {
			t.Fatalf("push %s failed", tk.ID)
		}
	}

	want := []*task.Task{high, medium, low}
	for i, expect := range want {
		got := q.Pop()
		if got == nil {
			t.Fatalf("pop %d returned nil", i)
		}
		if got.ID != expect.ID {
			t.Errorf("pop %d: got %s (%v), want %s (%v)", i, got.ID, got.Priority, expect.ID, expect.Priority)
		}
	}
	if q.Pop() != nil {
		t.Error("expected empty queue after draining")
	}
}

func TestPriorityQueue_FIFOWithinPriority(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	first := newTask(t, task.PriorityMedium, base)
	second := newTask(t, task.PriorityMedium, base.Add(time.Millisecond))
	third := newTask(t, task.PriorityMedium, base.Add(2*time.Millisecond))

	q := queue.NewPriorityQueue()
	q.Push(third)
	q.Push(first)
	q.Push(second)

	for i, expect := range []*task.Task{first, second, third} {
		got := q.Pop()
		if got == nil || got.ID != expect.ID {
			t.Fatalf("pop %d: wrong order", i)
		}
	}
}

func TestPriorityQueue_DuplicateRejected(t *testing.T) {
	t.Parallel()

	q := queue.NewPriorityQueue()
	tk := newTask(t, task.PriorityHigh, time.Now().UTC())
	if !q.Push(tk) {
		t.Fatal("first push rejected")
	}
	if q.Push(tk) {
		t.Error("duplicate active id accepted")
	}
	if q.Len() != 1 {
		t.Errorf("len = %d, want 1", q.Len())
	}
}

func TestPriorityQueue_LazyCancel(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	victim := newTask(t, task.PriorityHigh, base)
	survivor := newTask(t, task.PriorityLow, base)

	q := queue.NewPriorityQueue()
	q.Push(victim)
	q.Push(survivor)

	if !q.Cancel(victim.ID.String()) {
		t.Fatal("cancel of queued task reported false")
	}
	if q.Cancel(victim.ID.String()) {
		t.Error("second cancel should report false")
	}
	if q.Len() != 1 {
		t.Errorf("len = %d, want 1 after cancel", q.Len())
	}

	// The zombie heap entry must be discarded silently.
	got := q.Pop()
	if got == nil || got.ID != survivor.ID {
		t.Fatalf("pop returned %v, want survivor", got)
	}
	if q.Pop() != nil {
		t.Error("expected empty queue")
	}
}

func TestPriorityQueue_CancelUnknown(t *testing.T) {
	t.Parallel()

	q := queue.NewPriorityQueue()
	if q.Cancel("task_nonexistent") {
		t.Error("cancel of unknown id reported true")
	}
}

func TestPriorityQueue_PeekSkipsCancelled(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	victim := newTask(t, task.PriorityHigh, base)
	next := newTask(t, task.PriorityMedium, base)

	q := queue.NewPriorityQueue()
	q.Push(victim)
	q.Push(next)
	q.Cancel(victim.ID.String())

	got := q.Peek()
	if got == nil || got.ID != next.ID {
		t.Fatalf("peek returned %v, want next live task", got)
	}
	// Peek must not consume the live entry.
	if q.Pop().ID != next.ID {
		t.Error("pop after peek returned wrong task")
	}
}

func TestPriorityQueue_ReAddAfterCancel(t *testing.T) {
	t.Parallel()

	q := queue.NewPriorityQueue()
	tk := newTask(t, task.PriorityMedium, time.Now().UTC())
	q.Push(tk)
	q.Cancel(tk.ID.String())

	// The same id may be pushed again once cancelled; the fresh entry wins.
	if !q.Push(tk) {
		t.Fatal("re-push after cancel rejected")
	}
	got := q.Pop()
	if got == nil || got.ID != tk.ID {
		t.Fatal("re-pushed task not returned")
	}
}
