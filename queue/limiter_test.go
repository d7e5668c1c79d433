package queue_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bermudi/botitibot/queue"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	const capacity = 3
	lim := queue.NewLimiter(capacity)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lim.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer lim.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > capacity {
		t.Errorf("peak concurrency %d exceeded capacity %d", got, capacity)
	}
	if lim.InUse() != 0 {
		t.Errorf("InUse = %d after all releases, want 0", lim.InUse())
	}
}

func TestLimiter_AcquireHonoursContext(t *testing.T) {
	t.Parallel()

	lim := queue.NewLimiter(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := lim.Acquire(ctx); err == nil {
		t.Fatal("expected context error on exhausted pool")
	}
	lim.Release()
}

func TestLimiter_TryAcquire(t *testing.T) {
	t.Parallel()

	lim := queue.NewLimiter(1)
	if !lim.TryAcquire() {
		t.Fatal("TryAcquire on fresh limiter failed")
	}
	if lim.TryAcquire() {
		t.Fatal("TryAcquire succeeded past capacity")
	}
	lim.Release()
	if !lim.TryAcquire() {
		t.Fatal("TryAcquire after release failed")
	}
}

func TestLimiter_GrowWakesWaiters(t *testing.T) {
	t.Parallel()

	lim := queue.NewLimiter(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := lim.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	// Give the waiter time to block, then grow the pool.
	time.Sleep(10 * time.Millisecond)
	lim.SetCapacity(2)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by capacity grow")
	}
}

func TestLimiter_ShrinkNeverPreempts(t *testing.T) {
	t.Parallel()

	lim := queue.NewLimiter(3)
	for range 3 {
		if err := lim.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	lim.SetCapacity(1)
	// All three permits remain outstanding; only future acquires see the
	// new bound.
	if got := lim.InUse(); got != 3 {
		t.Errorf("InUse = %d immediately after shrink, want 3", got)
	}
	if lim.TryAcquire() {
		t.Error("TryAcquire succeeded while pool over new capacity")
	}

	lim.Release()
	lim.Release()
	if lim.TryAcquire() {
		t.Error("TryAcquire succeeded at capacity")
	}
	lim.Release()
	if !lim.TryAcquire() {
		t.Error("TryAcquire failed once pool drained below new capacity")
	}
}
