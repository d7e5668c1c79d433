package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	botitibot "github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/backoff"
	"github.com/bermudi/botitibot/hook"
	"github.com/bermudi/botitibot/middleware"
	"github.com/bermudi/botitibot/queue"
	"github.com/bermudi/botitibot/ratelimit"
	"github.com/bermudi/botitibot/task"
)

// Rehydrator rebuilds a runnable task from its persisted mirror. The queue
// manager cannot persist closures, so whoever owns the work-unit code
// provides the mapping from kind and payload back to a Fn at startup.
type Rehydrator func(st *task.ScheduledTask) (*task.Task, error)

// QueueStatus is a point-in-time snapshot of the manager's bookkeeping.
type QueueStatus struct {
	// Queued counts tasks waiting in the priority queue, including tasks
	// parked behind a retry or rate-limit timer.
	Queued int
	// Running counts execution steps currently in flight.
	Running int
	// Completed counts tasks that reached a terminal status.
	Completed int
}

// Manager is the queue manager. All methods are safe for concurrent use.
type Manager struct {
	cfg         botitibot.Config
	queue       *queue.PriorityQueue
	limiter     *queue.Limiter
	coordinator *ratelimit.Coordinator
	strategy    backoff.Strategy
	mw          middleware.Middleware
	hooks       *hook.Registry
	store       task.Store
	rehydrate   Rehydrator
	dispatch    *rate.Limiter
	logger      *slog.Logger

	mu      sync.Mutex
	results map[string]*task.Result
	tasks   map[string]*task.Task
	active  map[string]context.CancelFunc
	timers  map[string]*time.Timer
	running bool
	closed  bool

	// loopCtx stops the dispatch loop's blocking waits as soon as
	// Shutdown begins; execCtx is the parent of every work-unit context
	// and is cancelled only after the grace period.
	loopCtx    context.Context
	loopCancel context.CancelFunc
	execCtx    context.Context
	execCancel context.CancelFunc
	stopCh     chan struct{}
	doneCh     chan struct{}
	doneOnce   sync.Once
	wg         sync.WaitGroup

	fatal error
}

func (m *Manager) closeDone() {
	m.doneOnce.Do(func() { close(m.doneCh) })
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the persistence collaborator for scheduled tasks.
func WithStore(s task.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithRehydrator sets the callback Start uses to rebuild pending tasks
// from the store.
func WithRehydrator(r Rehydrator) Option {
	return func(m *Manager) { m.rehydrate = r }
}

// WithMiddleware sets the middleware chain every work unit runs through.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(m *Manager) { m.mw = middleware.Chain(mws...) }
}

// WithBackoff sets the retry backoff strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(m *Manager) { m.strategy = s }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(r *hook.Registry) Option {
	return func(m *Manager) { m.hooks = r }
}

// WithCoordinator sets the rate-limit coordinator shared with the
// scheduler. Without this option the manager builds its own with the
// default windows.
func WithCoordinator(c *ratelimit.Coordinator) Option {
	return func(m *Manager) { m.coordinator = c }
}

// WithDispatchRate caps how fast the dispatch loop hands tasks to
// execution steps, independent of the concurrency bound.
func WithDispatchRate(r rate.Limit, burst int) Option {
	return func(m *Manager) { m.dispatch = rate.NewLimiter(r, burst) }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New creates a queue manager with the given configuration.
func New(cfg botitibot.Config, opts ...Option) *Manager {
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}

	m := &Manager{
		cfg:      cfg,
		queue:    queue.NewPriorityQueue(),
		limiter:  queue.NewLimiter(cfg.MaxConcurrentTasks),
		strategy: backoff.DefaultStrategy(),
		mw:       middleware.Chain(),
		logger:   slog.Default(),
		results:  make(map[string]*task.Result),
		tasks:    make(map[string]*task.Task),
		active:   make(map[string]context.CancelFunc),
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.coordinator == nil {
		m.coordinator = ratelimit.NewCoordinator(ratelimit.DefaultWindows())
	}
	if m.hooks == nil {
		m.hooks = hook.NewRegistry(m.logger)
	}
	return m
}

// Coordinator returns the rate-limit coordinator the manager consults.
func (m *Manager) Coordinator() *ratelimit.Coordinator { return m.coordinator }

// Hooks returns the lifecycle hook registry.
func (m *Manager) Hooks() *hook.Registry { return m.hooks }

// AddTask accepts a task into the pending queue. Tasks whose ScheduledAt
// lies in the future are parked on a timer and enter the queue when it
// fires; everything else is queued immediately. Returns
// ErrTaskAlreadyExists if a task with the same id is already tracked and
// not terminal, and ErrManagerClosed after Shutdown.
func (m *Manager) AddTask(ctx context.Context, t *task.Task) error {
	key := t.ID.String()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return botitibot.ErrManagerClosed
	}
	if res, ok := m.results[key]; ok && !res.Status.Terminal() {
		m.mu.Unlock()
		return botitibot.ErrTaskAlreadyExists
	}

	m.tasks[key] = t
	m.results[key] = &task.Result{Status: task.StatusQueued}

	now := time.Now().UTC()
	if !t.ScheduledAt.IsZero() && t.ScheduledAt.After(now) {
		m.parkLocked(t, t.ScheduledAt.Sub(now))
	} else if !m.queue.Push(t) {
		delete(m.tasks, key)
		delete(m.results, key)
		m.mu.Unlock()
		return botitibot.ErrTaskAlreadyExists
	}
	m.mu.Unlock()

	m.persistScheduled(ctx, t)
	m.hooks.EmitTaskEnqueued(ctx, t)

	m.logger.Debug("task enqueued",
		slog.String("task_id", key),
		slog.String("task_kind", t.Kind),
		slog.String("priority", t.Priority.String()),
	)
	return nil
}

// CancelTask cancels a task by id. Queued and timer-parked tasks are
// removed without ever executing; running tasks have their context
// cancelled and reach the cancelled status when the work unit observes
// it. Returns false for unknown ids and tasks already in a terminal
// status, so the call is idempotent.
func (m *Manager) CancelTask(taskID string) bool {
	m.mu.Lock()

	res, ok := m.results[taskID]
	if !ok || res.Status.Terminal() {
		m.mu.Unlock()
		return false
	}

	// Running: cancel the execution context and let the execution step
	// record the terminal status.
	if cancel, isRunning := m.active[taskID]; isRunning {
		m.mu.Unlock()
		cancel()
		return true
	}

	// Parked behind a retry, rate-limit, or schedule timer.
	if timer, parked := m.timers[taskID]; parked {
		timer.Stop()
		delete(m.timers, taskID)
	}
	m.queue.Cancel(taskID)

	res.Status = task.StatusCancelled
	now := time.Now().UTC()
	res.CompletedAt = &now
	t := m.tasks[taskID]
	m.mu.Unlock()

	if t != nil {
		m.persistStatus(context.Background(), t, task.StatusCancelled)
	}
	m.hooks.EmitTaskCancelled(context.Background(), taskID)
	return true
}

// TaskStatus returns a copy of the tracked result for a task id.
func (m *Manager) TaskStatus(taskID string) (task.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.results[taskID]
	if !ok {
		return task.Result{}, false
	}
	return *res, true
}

// Status returns a snapshot of queue depth, in-flight executions, and
// terminal results.
func (m *Manager) Status() QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	completed := 0
	for _, res := range m.results {
		if res.Status.Terminal() {
			completed++
		}
	}
	return QueueStatus{
		Queued:    m.queue.Len() + len(m.timers),
		Running:   len(m.active),
		Completed: completed,
	}
}

// IsRateLimited reports whether the given operation type is currently
// throttled.
func (m *Manager) IsRateLimited(op string) bool {
	return m.coordinator.IsLimited(op)
}

// RateLimitDelay returns how long until the given operation type has
// budget again. Zero when the operation is not limited.
func (m *Manager) RateLimitDelay(op string) time.Duration {
	return m.coordinator.Delay(op)
}

// SetMaxConcurrent resizes the concurrency bound. Growing wakes blocked
// dispatches immediately; shrinking never preempts running work units.
func (m *Manager) SetMaxConcurrent(n int) {
	if n <= 0 {
		n = 1
	}
	m.limiter.SetCapacity(n)
	m.logger.Info("concurrency bound resized", slog.Int("max_concurrent", n))
}

// Start launches the dispatch loop. If a store and a rehydrator are
// configured, pending scheduled tasks are reloaded first so work survives
// a restart. Start is idempotent until Shutdown.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return botitibot.ErrManagerClosed
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.loopCtx, m.loopCancel = context.WithCancel(context.Background())
	m.execCtx, m.execCancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	if err := m.reloadPending(ctx); err != nil {
		m.logger.Error("failed to reload pending tasks", slog.String("error", err.Error()))
	}

	m.logger.Info("queue manager starting",
		slog.Int("max_concurrent", m.limiter.Capacity()),
		slog.Duration("poll_interval", m.cfg.PollInterval),
	)

	m.wg.Add(1)
	go m.dispatchLoop()
	return nil
}

// Shutdown stops the dispatch loop, waits up to ShutdownTimeout (or the
// context deadline, whichever is sooner) for in-flight work units, then
// cancels whatever is still running and awaits it. Once everything has
// settled the in-memory queue, task records, and results are cleared:
// TaskStatus reports unknown for every id after Shutdown returns. Parked
// timers are stopped; their tasks stay queued in the store for the next
// start.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.running
	m.running = false
	for key, timer := range m.timers {
		timer.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()

	m.logger.Info("queue manager stopping")

	if started {
		close(m.stopCh)
		m.loopCancel()

		if m.cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
			defer cancel()
		}

		waited := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(waited)
		}()

		select {
		case <-waited:
			m.logger.Info("queue manager stopped gracefully")
		case <-ctx.Done():
			m.logger.Warn("shutdown timed out, cancelling running tasks")
			m.cancelActive()
			<-waited
		}

		m.execCancel()
	}

	// Every work unit has exited; drop in-memory state so status queries
	// reflect a stopped manager rather than the last run.
	m.mu.Lock()
	m.queue = queue.NewPriorityQueue()
	m.tasks = make(map[string]*task.Task)
	m.results = make(map[string]*task.Result)
	m.active = make(map[string]context.CancelFunc)
	m.mu.Unlock()

	m.closeDone()

	m.hooks.EmitShutdown(context.Background())
	return nil
}

// Wait blocks until the dispatch loop has exited and returns the fatal
// error that stopped it, if any. A graceful Shutdown yields nil.
func (m *Manager) Wait() error {
	<-m.doneCh

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal
}

// reloadPending rebuilds queued tasks from the store via the rehydrator.
func (m *Manager) reloadPending(ctx context.Context) error {
	if m.store == nil || m.rehydrate == nil {
		return nil
	}

	pending, err := m.store.LoadPending(ctx)
	if err != nil {
		return err
	}

	for _, st := range pending {
		t, rehydrateErr := m.rehydrate(st)
		if rehydrateErr != nil {
			m.logger.Warn("skipping unrecoverable scheduled task",
				slog.String("task_id", st.TaskID),
				slog.String("task_kind", st.Kind),
				slog.String("error", rehydrateErr.Error()),
			)
			continue
		}
		if addErr := m.AddTask(ctx, t); addErr != nil {
			m.logger.Warn("failed to re-enqueue scheduled task",
				slog.String("task_id", st.TaskID),
				slog.String("error", addErr.Error()),
			)
		}
	}

	if len(pending) > 0 {
		m.logger.Info("reloaded pending tasks", slog.Int("count", len(pending)))
	}
	return nil
}

// parkLocked holds a task on a timer and pushes it into the queue when the
// delay elapses. Caller holds m.mu.
func (m *Manager) parkLocked(t *task.Task, delay time.Duration) {
	key := t.ID.String()
	m.timers[key] = time.AfterFunc(delay, func() {
		m.unpark(t)
	})
}

// unpark moves a timer-parked task into the pending queue, unless it was
// cancelled or the manager shut down while it waited.
func (m *Manager) unpark(t *task.Task) {
	key := t.ID.String()

	m.mu.Lock()
	delete(m.timers, key)
	if m.closed {
		m.mu.Unlock()
		return
	}
	res, ok := m.results[key]
	if !ok || res.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	res.Status = task.StatusQueued
	m.queue.Push(t)
	m.mu.Unlock()

	m.persistStatus(context.Background(), t, task.StatusQueued)
}

func (m *Manager) cancelActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, cancel := range m.active {
		m.logger.Warn("cancelling running task", slog.String("task_id", key))
		cancel()
	}
}

// persistScheduled mirrors a task into the store. Best-effort: failures
// are logged and the in-memory task proceeds.
func (m *Manager) persistScheduled(ctx context.Context, t *task.Task) {
	if m.store == nil || t.ScheduledAt.IsZero() {
		return
	}

	now := time.Now().UTC()
	st := &task.ScheduledTask{
		TaskID:      t.ID.String(),
		Kind:        t.Kind,
		Payload:     t.Payload,
		ScheduledAt: t.ScheduledAt,
		Priority:    t.Priority,
		Status:      task.StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.RecordScheduled(ctx, st); err != nil {
		m.logger.Error("failed to persist scheduled task",
			slog.String("task_id", st.TaskID),
			slog.String("error", err.Error()),
		)
	}
}

// persistStatus records a status transition in the store. Best-effort.
func (m *Manager) persistStatus(ctx context.Context, t *task.Task, status task.Status) {
	if m.store == nil || t.ScheduledAt.IsZero() {
		return
	}
	if err := m.store.UpdateStatus(ctx, t.ID.String(), status); err != nil {
		m.logger.Error("failed to persist task status",
			slog.String("task_id", t.ID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}
