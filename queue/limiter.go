package queue

import (
	"context"
	"sync"
)

// Limiter is a counting permit pool of mutable capacity. Acquire blocks the
// calling goroutine (cooperatively, honouring ctx) until a permit is free;
// Release returns one. The number of outstanding permits never exceeds the
// capacity in effect at acquire time; shrinking the capacity takes effect
// as permits drain and never preempts running work.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	wake     chan struct{}
}

// NewLimiter creates a Limiter with the given capacity. Capacities below
// one are clamped to one.
func NewLimiter(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		capacity: capacity,
		wake:     make(chan struct{}),
	}
}

// Acquire blocks until a permit is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.inUse < l.capacity {
			l.inUse++
			l.mu.Unlock()
			return nil
		}
		wake := l.wake
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// TryAcquire takes a permit without blocking. It reports false when the
// pool is exhausted.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inUse >= l.capacity {
		return false
	}
	l.inUse++
	return true
}

// Release returns a permit and wakes all blocked acquirers so they can
// re-check the capacity.
func (l *Limiter) Release() {
	l.mu.Lock()
	if l.inUse > 0 {
		l.inUse--
	}
	l.broadcast()
	l.mu.Unlock()
}

// SetCapacity resizes the pool. A grow wakes blocked acquirers; a shrink
// only changes the bound future acquires see.
func (l *Limiter) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	l.mu.Lock()
	grew := capacity > l.capacity
	l.capacity = capacity
	if grew {
		l.broadcast()
	}
	l.mu.Unlock()
}

// Capacity returns the current permit bound.
func (l *Limiter) Capacity() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capacity
}

// InUse returns the number of outstanding permits.
func (l *Limiter) InUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse
}

// broadcast closes and replaces the wake channel. Callers must hold mu.
func (l *Limiter) broadcast() {
	close(l.wake)
	l.wake = make(chan struct{})
}
