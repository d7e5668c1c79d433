package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/bermudi/botitibot/ratelimit"
)

// fakeClock is a mutex-guarded manual time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newCoordinator(clk *fakeClock, configs []ratelimit.WindowConfig) *ratelimit.Coordinator {
	return ratelimit.NewCoordinator(configs, ratelimit.WithClock(clk.Now))
}

func TestCoordinator_BudgetExhaustion(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newCoordinator(clk, []ratelimit.WindowConfig{
		{Op: ratelimit.OpWrite, Limit: 2, Period: time.Minute},
	})

	if c.IsLimited(ratelimit.OpWrite) {
		t.Fatal("fresh window reported limited")
	}
	c.Decrement(ratelimit.OpWrite)
	c.Decrement(ratelimit.OpWrite)
	if !c.IsLimited(ratelimit.OpWrite) {
		t.Fatal("exhausted window not reported limited")
	}
	if d := c.Delay(ratelimit.OpWrite); d <= 0 || d > time.Minute {
		t.Errorf("delay = %v, want (0, 1m]", d)
	}
}

func TestCoordinator_WindowRollsOver(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newCoordinator(clk, []ratelimit.WindowConfig{
		{Op: ratelimit.OpRead, Limit: 1, Period: time.Minute},
	})

	c.Decrement(ratelimit.OpRead)
	if !c.IsLimited(ratelimit.OpRead) {
		t.Fatal("expected limited")
	}
	before, _ := c.Snapshot(ratelimit.OpRead)

	clk.Advance(61 * time.Second)
	if c.IsLimited(ratelimit.OpRead) {
		t.Fatal("window did not roll over after reset time")
	}
	after, ok := c.Snapshot(ratelimit.OpRead)
	if !ok {
		t.Fatal("snapshot missing")
	}
	if after.Remaining != after.Limit {
		t.Errorf("remaining = %d after rollover, want %d", after.Remaining, after.Limit)
	}
	if !after.ResetAt.After(before.ResetAt) {
		t.Error("reset_at did not strictly increase across rollover")
	}
	if d := c.Delay(ratelimit.OpRead); d != 0 {
		t.Errorf("delay = %v after rollover, want 0", d)
	}
}

func TestCoordinator_Throttle(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newCoordinator(clk, nil)

	c.Throttle(ratelimit.OpWrite, 30*time.Second)
	if !c.IsLimited(ratelimit.OpWrite) {
		t.Fatal("throttled op not limited")
	}
	if d := c.Delay(ratelimit.OpWrite); d != 30*time.Second {
		t.Errorf("delay = %v, want 30s", d)
	}

	clk.Advance(31 * time.Second)
	if c.IsLimited(ratelimit.OpWrite) {
		t.Error("still limited after backoff elapsed")
	}
}

func TestCoordinator_ThrottleNeverShortensReset(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newCoordinator(clk, []ratelimit.WindowConfig{
		{Op: ratelimit.OpWrite, Limit: 1, Period: time.Minute},
	})

	c.Throttle(ratelimit.OpWrite, 5*time.Minute)
	c.Throttle(ratelimit.OpWrite, time.Second)
	if d := c.Delay(ratelimit.OpWrite); d != 5*time.Minute {
		t.Errorf("delay = %v, want the longer 5m throttle kept", d)
	}
}

func TestCoordinator_ThrottleUndeclaredOp(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newCoordinator(clk, []ratelimit.WindowConfig{})

	c.Throttle("search", 10*time.Second)
	if !c.IsLimited("search") {
		t.Error("throttle of undeclared op did not stick")
	}
}

func TestCoordinator_UpdateFromObserved(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newCoordinator(clk, []ratelimit.WindowConfig{
		{Op: ratelimit.OpRead, Limit: 100, Period: 15 * time.Minute},
	})

	// Server says the budget is gone.
	c.UpdateFromObserved(ratelimit.OpRead, 75, 0, clk.Now().Add(10*time.Minute))
	if !c.IsLimited(ratelimit.OpRead) {
		t.Fatal("server-observed exhaustion ignored")
	}
	w, _ := c.Snapshot(ratelimit.OpRead)
	if w.Limit != 75 {
		t.Errorf("limit = %d, want server-provided 75", w.Limit)
	}

	// Remaining is clamped into [0, limit].
	c.UpdateFromObserved(ratelimit.OpRead, 75, 500, clk.Now().Add(10*time.Minute))
	w, _ = c.Snapshot(ratelimit.OpRead)
	if w.Remaining != 75 {
		t.Errorf("remaining = %d, want clamped to 75", w.Remaining)
	}
}

func TestCoordinator_UpdateFromObservedShortensReset(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newCoordinator(clk, []ratelimit.WindowConfig{
		{Op: ratelimit.OpWrite, Limit: 1, Period: time.Minute},
	})

	// A local throttle pushed the reset far out, but the server reports
	// an earlier one. The server's reset wins even when it is sooner.
	c.Throttle(ratelimit.OpWrite, 10*time.Minute)
	c.UpdateFromObserved(ratelimit.OpWrite, 50, 0, clk.Now().Add(30*time.Second))

	if d := c.Delay(ratelimit.OpWrite); d != 30*time.Second {
		t.Errorf("delay = %v, want server-provided 30s", d)
	}
	clk.Advance(31 * time.Second)
	if c.IsLimited(ratelimit.OpWrite) {
		t.Error("still limited after the server-reported reset passed")
	}
}

func TestCoordinator_UnknownOpNeverLimited(t *testing.T) {
	t.Parallel()

	c := newCoordinator(newFakeClock(), []ratelimit.WindowConfig{})
	if c.IsLimited("nonsense") {
		t.Error("unknown op reported limited")
	}
	if d := c.Delay("nonsense"); d != 0 {
		t.Errorf("delay = %v for unknown op, want 0", d)
	}
}
