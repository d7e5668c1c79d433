package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	botitibot "github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/task"
)

// dispatchLoop drains the priority queue: acquire a concurrency permit,
// pop the best pending task, hand it to an execution step goroutine.
// The loop itself never runs work units.
func (m *Manager) dispatchLoop() {
	defer m.wg.Done()
	defer m.closeDone()
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.fatal = fmt.Errorf("botitibot: dispatch loop panic: %v", r)
			m.mu.Unlock()
			m.logger.Error("dispatch loop panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		if err := m.limiter.Acquire(m.loopContext()); err != nil {
			return
		}

		m.mu.Lock()
		t := m.queue.Pop()
		m.mu.Unlock()

		if t == nil {
			m.limiter.Release()
			m.sleep()
			continue
		}

		if m.dispatch != nil {
			if err := m.dispatch.Wait(m.loopContext()); err != nil {
				// Stopping: put the task back for the next start.
				m.mu.Lock()
				m.queue.Push(t)
				m.mu.Unlock()
				m.limiter.Release()
				return
			}
		}

		m.wg.Add(1)
		go m.execute(t)
	}
}

// loopContext is cancelled as soon as Shutdown begins.
func (m *Manager) loopContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loopCtx
}

// execContext is the parent of every work-unit context. It outlives the
// dispatch loop and is cancelled only after the shutdown grace period.
func (m *Manager) execContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execCtx
}

func (m *Manager) sleep() {
	select {
	case <-time.After(m.cfg.PollInterval):
	case <-m.stopCh:
	}
}

// execute is one execution step: run the task's work unit through the
// middleware chain, then classify the outcome. Holds one concurrency
// permit for its whole lifetime.
func (m *Manager) execute(t *task.Task) {
	defer m.wg.Done()
	defer m.limiter.Release()

	key := t.ID.String()

	ctx, cancel := context.WithCancel(m.execContext())
	defer cancel()
	ctx = botitibot.WithTaskID(ctx, key)

	started := time.Now().UTC()
	m.mu.Lock()
	res := m.results[key]
	if res == nil {
		res = &task.Result{}
		m.results[key] = res
	}
	// Cancelled between pop and here: never run the work unit.
	if res.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	res.Status = task.StatusRunning
	res.StartedAt = &started
	m.active[key] = cancel
	m.mu.Unlock()

	m.hooks.EmitTaskStarted(ctx, t)

	value, err := m.mw(ctx, t, func(ctx context.Context) (any, error) {
		return t.Fn(ctx)
	})
	elapsed := time.Since(started)

	m.mu.Lock()
	delete(m.active, key)
	m.mu.Unlock()

	switch {
	case err == nil:
		m.complete(ctx, t, value, elapsed)
	default:
		m.classifyFailure(ctx, t, err)
	}
}

// complete records a successful terminal result.
func (m *Manager) complete(ctx context.Context, t *task.Task, value any, elapsed time.Duration) {
	key := t.ID.String()
	now := time.Now().UTC()

	m.mu.Lock()
	res := m.results[key]
	res.Status = task.StatusCompleted
	res.Value = value
	res.Retries = t.Retries
	res.CompletedAt = &now
	m.mu.Unlock()

	m.persistStatus(ctx, t, task.StatusCompleted)
	m.hooks.EmitTaskCompleted(ctx, t, elapsed)

	m.logger.Debug("task completed",
		slog.String("task_id", key),
		slog.String("task_kind", t.Kind),
		slog.Duration("elapsed", elapsed),
	)
}

// classifyFailure routes a work-unit error to the right outcome:
// rate-limit signals defer the task without consuming a retry,
// cancellation is terminal, and anything else goes through the retry
// budget.
func (m *Manager) classifyFailure(ctx context.Context, t *task.Task, err error) {
	key := t.ID.String()

	if rle, ok := botitibot.AsRateLimit(err); ok {
		m.deferRateLimited(ctx, t, rle)
		return
	}

	if errors.Is(err, context.Canceled) {
		now := time.Now().UTC()
		m.mu.Lock()
		res := m.results[key]
		res.Status = task.StatusCancelled
		res.Retries = t.Retries
		res.CompletedAt = &now
		m.mu.Unlock()

		m.persistStatus(context.Background(), t, task.StatusCancelled)
		m.hooks.EmitTaskCancelled(context.Background(), key)
		return
	}

	t.Retries++
	if t.Retries <= t.MaxRetries {
		m.scheduleRetry(ctx, t, err)
		return
	}

	now := time.Now().UTC()
	m.mu.Lock()
	res := m.results[key]
	res.Status = task.StatusFailed
	res.Err = err.Error()
	res.Retries = t.Retries
	res.CompletedAt = &now
	m.mu.Unlock()

	m.persistStatus(ctx, t, task.StatusFailed)
	m.hooks.EmitTaskFailed(ctx, t, err)

	m.logger.Warn("task failed after exhausting retries",
		slog.String("task_id", key),
		slog.String("task_kind", t.Kind),
		slog.Int("retries", t.Retries),
		slog.String("error", err.Error()),
	)
}

// scheduleRetry parks the task on a backoff timer. When it fires, the task
// re-enters the queue at its original priority and creation time, so it
// does not jump ahead of peers that were already waiting.
func (m *Manager) scheduleRetry(ctx context.Context, t *task.Task, err error) {
	delay := m.strategy.Delay(t.Retries)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	res := m.results[t.ID.String()]
	res.Status = task.StatusQueued
	res.Retries = t.Retries
	m.parkLocked(t, delay)
	m.mu.Unlock()

	m.hooks.EmitTaskRetrying(ctx, t, t.Retries)

	m.logger.Info("task scheduled for retry",
		slog.String("task_id", t.ID.String()),
		slog.String("task_kind", t.Kind),
		slog.Int("attempt", t.Retries),
		slog.Int("max_retries", t.MaxRetries),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()),
	)
}

// deferRateLimited throttles the whole operation type and parks the task
// until the backoff elapses. The retry counter is untouched: hitting a
// rate limit is the platform's pacing, not a task failure.
func (m *Manager) deferRateLimited(ctx context.Context, t *task.Task, rle *botitibot.RateLimitError) {
	m.coordinator.Throttle(rle.Op, rle.Backoff)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	res := m.results[t.ID.String()]
	res.Status = task.StatusRateLimited
	m.parkLocked(t, rle.Backoff)
	m.mu.Unlock()

	m.persistStatus(ctx, t, task.StatusRateLimited)
	m.hooks.EmitTaskRateLimited(ctx, t, rle.Op, rle.Backoff)

	m.logger.Info("task deferred by rate limit",
		slog.String("task_id", t.ID.String()),
		slog.String("task_kind", t.Kind),
		slog.String("op", rle.Op),
		slog.Duration("backoff", rle.Backoff),
	)
}
