// Package agent wires all botitibot subsystems together. It builds the
// middleware chain, the lifecycle hook registry, the queue manager, and
// the scheduler, and runs them as one unit.
//
// This package exists to break the import cycle: the root botitibot
// package defines Config and the error taxonomy (imported by task, sched,
// and the rest) and so cannot import those packages back. The agent
// package sits above all subsystem packages and below the application
// layer.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/backoff"
	"github.com/bermudi/botitibot/hook"
	"github.com/bermudi/botitibot/id"
	"github.com/bermudi/botitibot/manager"
	mw "github.com/bermudi/botitibot/middleware"
	"github.com/bermudi/botitibot/observability"
	"github.com/bermudi/botitibot/ratelimit"
	"github.com/bermudi/botitibot/sched"
	"github.com/bermudi/botitibot/store"
)

// Agent bundles a queue manager and a scheduler over one store and one
// set of platform clients. Use New to create one.
type Agent struct {
	cfg    botitibot.Config
	mgr    *manager.Manager
	sch    *sched.Scheduler
	st     store.Store
	logger *slog.Logger

	// Collected by options before the subsystems are built.
	mws         []mw.Middleware
	hooks       []hook.Hook
	coordinator *ratelimit.Coordinator
	bo          backoff.Strategy
	rehydrate   manager.Rehydrator
	prompt      string

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the structured logger shared by all subsystems.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(a *Agent) { a.mws = append(a.mws, m) }
}

// WithHook registers a lifecycle hook with the agent.
func WithHook(h hook.Hook) Option {
	return func(a *Agent) { a.hooks = append(a.hooks, h) }
}

// WithBackoff sets the retry backoff strategy.
// If not set, backoff.DefaultStrategy() is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(a *Agent) { a.bo = b }
}

// WithCoordinator sets the rate-limit coordinator shared by the manager,
// the rate-limit middleware, and the scheduler's pre-dispatch checks.
// Without this option the agent builds one with the default windows.
func WithCoordinator(c *ratelimit.Coordinator) Option {
	return func(a *Agent) { a.coordinator = c }
}

// WithRehydrator sets the callback the manager uses to rebuild pending
// tasks from the store on start.
func WithRehydrator(r manager.Rehydrator) Option {
	return func(a *Agent) { a.rehydrate = r }
}

// WithPrompt overrides the content-generation prompt.
func WithPrompt(prompt string) Option {
	return func(a *Agent) { a.prompt = prompt }
}

// WithTracerProvider sets a custom OTel TracerProvider for the agent.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Agent) { a.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the agent.
// When set, both the metrics middleware and the observability hook use
// this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *Agent) { a.meterProvider = mp }
}

// New builds an Agent over the given store, generator, and platform
// clients. The store is required; loops persist posts, comments, and
// task mirrors through it.
func New(
	cfg botitibot.Config,
	st store.Store,
	gen sched.ContentGenerator,
	clients []sched.PlatformClient,
	opts ...Option,
) (*Agent, error) {
	if st == nil {
		return nil, botitibot.ErrNoStore
	}

	a := &Agent{
		cfg:    cfg,
		st:     st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.bo == nil {
		a.bo = backoff.DefaultStrategy()
	}
	if a.coordinator == nil {
		a.coordinator = ratelimit.NewCoordinator(ratelimit.DefaultWindows())
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if a.tracerProvider != nil {
		tracer := a.tracerProvider.Tracer("github.com/bermudi/botitibot")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if a.meterProvider != nil {
		meter := a.meterProvider.Meter("github.com/bermudi/botitibot")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics hook.
	var obsHook *observability.MetricsHook
	if a.meterProvider != nil {
		meter := a.meterProvider.Meter("github.com/bermudi/botitibot/observability")
		obsHook = observability.NewMetricsHookWithMeter(meter)
	} else {
		obsHook = observability.NewMetricsHook()
	}

	hooks := hook.NewRegistry(a.logger)
	hooks.Register(obsHook)
	for _, h := range a.hooks {
		hooks.Register(h)
	}

	// Default middleware stack: recover → tracing → metrics → logging → rate limit.
	allMws := []mw.Middleware{
		mw.Recover(a.logger),
		tracingMw,
		metricsMw,
		mw.Logging(a.logger),
		mw.RateLimit(a.coordinator),
	}
	allMws = append(allMws, a.mws...)

	mgrOpts := []manager.Option{
		manager.WithStore(st),
		manager.WithMiddleware(allMws...),
		manager.WithBackoff(a.bo),
		manager.WithHooks(hooks),
		manager.WithCoordinator(a.coordinator),
		manager.WithLogger(a.logger),
	}
	if a.rehydrate != nil {
		mgrOpts = append(mgrOpts, manager.WithRehydrator(a.rehydrate))
	}
	a.mgr = manager.New(cfg, mgrOpts...)

	schedOpts := []sched.Option{sched.WithLogger(a.logger)}
	if a.prompt != "" {
		schedOpts = append(schedOpts, sched.WithPrompt(a.prompt))
	}
	a.sch = sched.New(a.mgr, gen, st, clients, cfg, schedOpts...)

	return a, nil
}

// Start runs pending migrations, starts the manager's dispatch loop, and
// launches the scheduler loops.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.st.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %s", botitibot.ErrMigrationFailed, err)
	}
	if err := a.mgr.Start(ctx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	return a.sch.Start(ctx)
}

// Stop winds the agent down: scheduler loops first so no new cycles are
// queued, then the manager with its shutdown grace period, then the store.
func (a *Agent) Stop(ctx context.Context) error {
	if err := a.sch.Stop(ctx); err != nil {
		a.logger.Error("scheduler stop error", slog.String("error", err.Error()))
	}
	if err := a.mgr.Shutdown(ctx); err != nil {
		a.logger.Error("manager shutdown error", slog.String("error", err.Error()))
	}
	return a.st.Close()
}

// AddPostPlan registers a recurring post plan with a cron schedule and a
// dedicated prompt. An empty prompt falls back to the agent's default.
func (a *Agent) AddPostPlan(name, schedule, prompt string) (id.PlanID, error) {
	return a.sch.AddPlan(name, schedule, prompt)
}

// Manager returns the underlying queue manager.
func (a *Agent) Manager() *manager.Manager { return a.mgr }

// Scheduler returns the underlying scheduler.
func (a *Agent) Scheduler() *sched.Scheduler { return a.sch }

// Store returns the agent's store.
func (a *Agent) Store() store.Store { return a.st }

// Hooks returns the lifecycle hook registry.
func (a *Agent) Hooks() *hook.Registry { return a.mgr.Hooks() }
