package sched

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	botitibot "github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/hook"
	"github.com/bermudi/botitibot/manager"
	"github.com/bermudi/botitibot/ratelimit"
	"github.com/bermudi/botitibot/task"
)

// Loop names used in logs, hooks, and interval bookkeeping.
const (
	LoopContent = "content_generation"
	LoopReplies = "reply_checking"
	LoopMetrics = "metrics_collection"
)

// defaultPrompt matches the agent's long-standing content instruction.
const defaultPrompt = "Create an engaging social media post about technology trends"

// loopState tracks one loop's baseline and possibly inflated interval.
type loopState struct {
	baseline time.Duration
	current  time.Duration
}

// Scheduler owns the three periodic loops and the post plan. It composes a
// queue manager and never touches the heap or the limiter directly.
type Scheduler struct {
	mgr    *manager.Manager
	gen    ContentGenerator
	store  Store
	hooks  *hook.Registry
	logger *slog.Logger

	prompt      string
	planTick    time.Duration
	awaitPoll   time.Duration
	maxInterval time.Duration

	mu       sync.Mutex
	clients  map[string]PlatformClient
	order    []string
	disabled map[string]bool
	loops    map[string]*loopState
	plans    map[string]*Plan
	running  bool
	stopped  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithPrompt overrides the content-generation prompt.
func WithPrompt(prompt string) Option {
	return func(s *Scheduler) { s.prompt = prompt }
}

// WithPlanTick sets how often the post plan is checked for due entries.
func WithPlanTick(d time.Duration) Option {
	return func(s *Scheduler) { s.planTick = d }
}

// New creates a Scheduler over the given manager and collaborators.
// Clients are rotated in the order given.
func New(
	mgr *manager.Manager,
	gen ContentGenerator,
	store Store,
	clients []PlatformClient,
	cfg botitibot.Config,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		mgr:         mgr,
		gen:         gen,
		store:       store,
		hooks:       mgr.Hooks(),
		logger:      slog.Default(),
		prompt:      defaultPrompt,
		planTick:    time.Second,
		awaitPoll:   5 * time.Millisecond,
		maxInterval: cfg.MaxInterval,
		clients:     make(map[string]PlatformClient),
		disabled:    make(map[string]bool),
		plans:       make(map[string]*Plan),
		loops: map[string]*loopState{
			LoopContent: {baseline: cfg.ContentInterval, current: cfg.ContentInterval},
			LoopReplies: {baseline: cfg.ReplyInterval, current: cfg.ReplyInterval},
			LoopMetrics: {baseline: cfg.MetricsInterval, current: cfg.MetricsInterval},
		},
		stopCh: make(chan struct{}),
	}
	for _, c := range clients {
		s.clients[c.Name()] = c
		s.order = append(s.order, c.Name())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the three loops and the post-plan ticker. Idempotent
// until Stop.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return botitibot.ErrSchedulerClosed
	}
	if s.running {
		return nil
	}
	s.running = true

	s.logger.Info("scheduler starting",
		slog.Duration("content_interval", s.loops[LoopContent].baseline),
		slog.Duration("reply_interval", s.loops[LoopReplies].baseline),
		slog.Duration("metrics_interval", s.loops[LoopMetrics].baseline),
	)

	s.wg.Add(4)
	go s.loop(LoopContent, ratelimit.OpWrite, s.contentCycle)
	go s.loop(LoopReplies, ratelimit.OpRead, s.replyCycle)
	go s.loop(LoopMetrics, ratelimit.OpRead, s.metricsCycle)
	go s.planLoop()
	return nil
}

// Stop signals every loop and waits for them to exit. Safe to call more
// than once and when some loops have already returned.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// UpdateConfig live-swaps the loop baselines, the inflation cap, and the
// manager's concurrency bound. Inflated intervals reset to the new
// baselines.
func (s *Scheduler) UpdateConfig(cfg botitibot.Config) {
	s.mu.Lock()
	s.maxInterval = cfg.MaxInterval
	for name, d := range map[string]time.Duration{
		LoopContent: cfg.ContentInterval,
		LoopReplies: cfg.ReplyInterval,
		LoopMetrics: cfg.MetricsInterval,
	} {
		st := s.loops[name]
		st.baseline = d
		st.current = d
	}
	s.mu.Unlock()

	s.mgr.SetMaxConcurrent(cfg.MaxConcurrentTasks)
	s.logger.Info("scheduler configuration updated",
		slog.Duration("content_interval", cfg.ContentInterval),
		slog.Duration("reply_interval", cfg.ReplyInterval),
		slog.Duration("metrics_interval", cfg.MetricsInterval),
		slog.Int("max_concurrent", cfg.MaxConcurrentTasks),
	)
}

// Interval returns a loop's current (possibly inflated) interval.
func (s *Scheduler) Interval(loop string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.loops[loop]; ok {
		return st.current
	}
	return 0
}

// PlatformDisabled reports whether a platform has been taken out of
// rotation.
func (s *Scheduler) PlatformDisabled(platform string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled[platform]
}

// EnablePlatform puts a disabled platform back into rotation, for use
// after credentials are refreshed.
func (s *Scheduler) EnablePlatform(platform string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.disabled, platform)
}

// loop is the shared shape of the three periodic loops.
func (s *Scheduler) loop(name, op string, cycle func(ctx context.Context) error) {
	defer s.wg.Done()

	for {
		// Rate-limit pre-check: no work while the operation is throttled.
		if d := s.mgr.RateLimitDelay(op); d > 0 {
			if !s.sleep(min(d, s.Interval(name))) {
				return
			}
			continue
		}

		start := time.Now()
		err := s.runCycle(name, op, cycle)
		switch {
		case errors.Is(err, botitibot.ErrSchedulerClosed):
			return
		case err == nil:
			s.deflate(name)
			s.hooks.EmitCycleCompleted(context.Background(), name, time.Since(start))
			s.logger.Debug("cycle completed",
				slog.String("loop", name),
				slog.Duration("elapsed", time.Since(start)),
			)
		default:
			if rle, ok := botitibot.AsRateLimit(err); ok {
				s.inflate(name)
				s.logger.Warn("cycle rate limited, interval inflated",
					slog.String("loop", name),
					slog.String("op", rle.Op),
					slog.Duration("interval", s.Interval(name)),
				)
			} else {
				// A single failed cycle never terminates the loop.
				s.logger.Error("cycle error",
					slog.String("loop", name),
					slog.String("error", err.Error()),
				)
			}
		}

		if !s.sleep(s.Interval(name)) {
			return
		}
	}
}

// capturedErr carries the typed cycle error across the queue manager
// boundary, which only stores error strings.
type capturedErr struct {
	mu  sync.Mutex
	err error
}

func (c *capturedErr) set(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *capturedErr) get() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// runCycle hands one cycle to the queue manager as a task and awaits its
// outcome. Cycle tasks carry no retry budget: the loop's own interval is
// the retry pacing. A rate-limit deferral is surfaced immediately so the
// loop can inflate; the parked task is cancelled because the next cycle
// starts fresh.
func (s *Scheduler) runCycle(name, op string, cycle func(ctx context.Context) error) error {
	capture := &capturedErr{}
	t := task.New(name,
		func(ctx context.Context) (any, error) {
			err := cycle(ctx)
			capture.set(err)
			return nil, err
		},
		task.WithOperation(op),
		task.WithMaxRetries(0),
	)

	if err := s.mgr.AddTask(context.Background(), t); err != nil {
		return err
	}

	key := t.ID.String()
	for {
		select {
		case <-s.stopCh:
			s.mgr.CancelTask(key)
			return botitibot.ErrSchedulerClosed
		case <-time.After(s.awaitPoll):
		}

		res, ok := s.mgr.TaskStatus(key)
		if !ok {
			continue
		}
		switch res.Status {
		case task.StatusCompleted:
			return nil
		case task.StatusFailed:
			if err := capture.get(); err != nil {
				return err
			}
			return errors.New(res.Err)
		case task.StatusCancelled:
			return botitibot.ErrSchedulerClosed
		case task.StatusRateLimited:
			s.mgr.CancelTask(key)
			if err := capture.get(); err != nil {
				return err
			}
			// The middleware guard tripped before the work unit ran, so
			// the cycle never captured an error. Synthesize one so the
			// loop still inflates.
			return botitibot.NewRateLimitError(op, s.mgr.RateLimitDelay(op))
		default:
			// queued or running: keep waiting.
		}
	}
}

// sleep waits for d or for Stop. Returns false when stopping.
func (s *Scheduler) sleep(d time.Duration) bool {
	if d <= 0 {
		d = time.Millisecond
	}
	select {
	case <-time.After(d):
		return true
	case <-s.stopCh:
		return false
	}
}

func (s *Scheduler) inflate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.loops[name]
	st.current = min(st.current*2, s.maxInterval)
}

func (s *Scheduler) deflate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.loops[name]
	if st.current > st.baseline {
		st.current = max(st.current/2, st.baseline)
	}
}

// activeClients snapshots the enabled platform clients in rotation order.
func (s *Scheduler) activeClients() []PlatformClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PlatformClient, 0, len(s.order))
	for _, name := range s.order {
		if s.disabled[name] {
			continue
		}
		out = append(out, s.clients[name])
	}
	return out
}

// clientFor returns the enabled client for a platform, or nil.
func (s *Scheduler) clientFor(platform string) PlatformClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled[platform] {
		return nil
	}
	return s.clients[platform]
}

// handlePlatformErr reacts to a platform call failure. Unauthorized takes
// the platform out of rotation and reports true; rate limits and other
// errors are the caller's to classify.
func (s *Scheduler) handlePlatformErr(ctx context.Context, platform string, err error) bool {
	var perr *botitibot.PlatformError
	if !errors.As(err, &perr) || !perr.Unauthorized() {
		return false
	}

	s.mu.Lock()
	already := s.disabled[platform]
	s.disabled[platform] = true
	s.mu.Unlock()

	if !already {
		s.logger.Error("platform disabled: credentials rejected",
			slog.String("platform", platform),
			slog.String("error", err.Error()),
		)
		s.hooks.EmitPlatformDisabled(ctx, platform, err)
	}
	return true
}
