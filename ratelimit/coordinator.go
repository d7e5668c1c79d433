// Package ratelimit tracks per-operation-type throttle windows for the
// queue manager. Operations are coarse classes — read, write, auth — that
// group rate-limit budgets across otherwise-unrelated tasks, so one
// throttled write holds back every sibling write.
package ratelimit

import (
	"sync"
	"time"
)

// Operation type names shared across the module.
const (
	OpRead  = "read"
	OpWrite = "write"
	OpAuth  = "auth"
)

// Window is the throttle state for one operation type. remaining counts
// the budget left in the current window; the window rolls over when
// reset_at passes, restoring the full limit.
type Window struct {
	Remaining int
	Limit     int
	Period    time.Duration
	ResetAt   time.Time
}

// Limited reports whether the window is exhausted at the given instant.
func (w *Window) Limited(now time.Time) bool {
	return w.Remaining <= 0 && now.Before(w.ResetAt)
}

// WindowConfig declares the local budget for one operation type.
type WindowConfig struct {
	Op     string
	Limit  int
	Period time.Duration
}

// DefaultWindows returns the conservative local budgets the agent ships
// with. Servers reconcile these via UpdateFromObserved.
func DefaultWindows() []WindowConfig {
	return []WindowConfig{
		{Op: OpRead, Limit: 100, Period: 15 * time.Minute},
		{Op: OpWrite, Limit: 50, Period: 15 * time.Minute},
		{Op: OpAuth, Limit: 10, Period: time.Hour},
	}
}

// Coordinator maintains one Window per operation type. Safe for concurrent
// use. The clock is injectable for tests.
type Coordinator struct {
	mu      sync.Mutex
	windows map[string]*Window
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock injects the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator with the given window budgets.
// Passing nil configs installs DefaultWindows.
func NewCoordinator(configs []WindowConfig, opts ...Option) *Coordinator {
	if configs == nil {
		configs = DefaultWindows()
	}
	c := &Coordinator{
		windows: make(map[string]*Window, len(configs)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, cfg := range configs {
		c.windows[cfg.Op] = &Window{
			Remaining: cfg.Limit,
			Limit:     cfg.Limit,
			Period:    cfg.Period,
			ResetAt:   c.now().Add(cfg.Period),
		}
	}
	return c
}

// IsLimited reports whether the operation type is currently throttled.
// When the window's reset time has passed it rolls over as a side effect:
// remaining is restored to the limit and the next reset scheduled.
func (c *Coordinator) IsLimited(op string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[op]
	if w == nil {
		return false // unclassified operations are never throttled locally
	}
	now := c.now()
	c.rollover(w, now)
	return w.Limited(now)
}

// Decrement consumes one unit of the operation's budget. Called before an
// attempt is made against the remote service.
func (c *Coordinator) Decrement(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[op]
	if w == nil {
		return
	}
	c.rollover(w, c.now())
	if w.Remaining > 0 {
		w.Remaining--
	}
}

// Delay returns how long until the operation's window resets, or zero when
// the operation is not limited.
func (c *Coordinator) Delay(op string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[op]
	if w == nil {
		return 0
	}
	now := c.now()
	c.rollover(w, now)
	if !w.Limited(now) {
		return 0
	}
	return w.ResetAt.Sub(now)
}

// Throttle marks the operation exhausted for the given backoff. Used when
// a work unit surfaces a rate-limit signal so sibling tasks of the same
// operation type are held back too.
func (c *Coordinator) Throttle(op string, backoff time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[op]
	if w == nil {
		// A signal for an undeclared operation still installs a window so
		// the throttle sticks.
		w = &Window{Limit: 1, Period: backoff}
		c.windows[op] = w
	}
	w.Remaining = 0
	reset := c.now().Add(backoff)
	if reset.After(w.ResetAt) {
		w.ResetAt = reset
	}
}

// UpdateFromObserved reconciles the local window with authoritative data
// returned by the remote service. Server-provided limits always win,
// including a reset time earlier than the one tracked locally: rollover
// keeps reset_at monotonic on its own schedule, but reconciliation takes
// the server's word as-is.
func (c *Coordinator) UpdateFromObserved(op string, limit, remaining int, resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[op]
	if w == nil {
		w = &Window{Period: time.Until(resetAt)}
		c.windows[op] = w
	}
	w.Limit = limit
	w.Remaining = max(0, min(remaining, limit))
	w.ResetAt = resetAt
}

// Snapshot returns a copy of the window for an operation type, for status
// reporting. The second return is false for undeclared operations.
func (c *Coordinator) Snapshot(op string) (Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[op]
	if w == nil {
		return Window{}, false
	}
	c.rollover(w, c.now())
	return *w, true
}

// rollover restores the budget when the reset time has passed. reset_at
// strictly increases across rollovers. Callers must hold mu.
func (c *Coordinator) rollover(w *Window, now time.Time) {
	if now.Before(w.ResetAt) {
		return
	}
	w.Remaining = w.Limit
	w.ResetAt = now.Add(w.Period)
}
