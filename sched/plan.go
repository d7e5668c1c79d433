package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	botitibot "github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/id"
	"github.com/bermudi/botitibot/ratelimit"
	"github.com/bermudi/botitibot/task"
)

// cronParser supports standard 5-field cron and descriptors like
// "@daily" or "@every 30m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression into a schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Plan is a recurring content entry: on each firing of its schedule a
// HIGH-priority content task is enqueued with the plan's prompt.
type Plan struct {
	ID        id.PlanID
	Name      string
	Schedule  string
	Prompt    string
	Enabled   bool
	LastRunAt *time.Time
	NextRunAt time.Time

	schedule cronlib.Schedule
}

// AddPlan registers a recurring content entry under a unique name.
// Returns ErrDuplicatePlan when the name is taken.
func (s *Scheduler) AddPlan(name, scheduleExpr, prompt string) (id.PlanID, error) {
	schedule, err := ParseSchedule(scheduleExpr)
	if err != nil {
		return id.Nil, fmt.Errorf("parse plan schedule %q: %w", scheduleExpr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[name]; exists {
		return id.Nil, botitibot.ErrDuplicatePlan
	}

	p := &Plan{
		ID:        id.NewPlanID(),
		Name:      name,
		Schedule:  scheduleExpr,
		Prompt:    prompt,
		Enabled:   true,
		NextRunAt: schedule.Next(time.Now().UTC()),
		schedule:  schedule,
	}
	s.plans[name] = p

	s.logger.Info("post plan added",
		slog.String("plan", name),
		slog.String("schedule", scheduleExpr),
		slog.Time("next_run", p.NextRunAt),
	)
	return p.ID, nil
}

// RemovePlan deletes a plan by name. Returns false if no such plan exists.
func (s *Scheduler) RemovePlan(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[name]; !ok {
		return false
	}
	delete(s.plans, name)
	return true
}

// SetPlanEnabled pauses or resumes a plan without losing its schedule.
func (s *Scheduler) SetPlanEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[name]
	if !ok {
		return false
	}
	p.Enabled = enabled
	if enabled {
		p.NextRunAt = p.schedule.Next(time.Now().UTC())
	}
	return true
}

// Plans returns a snapshot of the registered plans.
func (s *Scheduler) Plans() []Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, *p)
	}
	return out
}

// planLoop fires on each tick and enqueues content tasks for due plans.
func (s *Scheduler) planLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.planTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.planTickOnce()
		}
	}
}

func (s *Scheduler) planTickOnce() {
	now := time.Now().UTC()

	s.mu.Lock()
	var due []*Plan
	for _, p := range s.plans {
		if !p.Enabled || p.NextRunAt.After(now) {
			continue
		}
		due = append(due, p)
		fired := now
		p.LastRunAt = &fired
		p.NextRunAt = p.schedule.Next(now)
	}
	s.mu.Unlock()

	for _, p := range due {
		s.firePlan(p, now)
	}
}

// firePlan enqueues one HIGH-priority content task for a due plan.
func (s *Scheduler) firePlan(p *Plan, now time.Time) {
	prompt := p.Prompt
	if prompt == "" {
		prompt = s.prompt
	}

	t := task.New("planned_post",
		func(ctx context.Context) (any, error) {
			content, err := s.gen.GeneratePost(ctx, prompt)
			if err != nil {
				return nil, fmt.Errorf("generate planned content: %w", err)
			}
			for _, client := range s.activeClients() {
				if pubErr := s.publishTo(ctx, client, content); pubErr != nil {
					return nil, pubErr
				}
			}
			return content, nil
		},
		task.WithPriority(task.PriorityHigh),
		task.WithOperation(ratelimit.OpWrite),
		task.WithScheduledAt(now),
	)

	if err := s.mgr.AddTask(context.Background(), t); err != nil {
		s.logger.Error("failed to enqueue planned post",
			slog.String("plan", p.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("post plan fired",
		slog.String("plan", p.Name),
		slog.String("task_id", t.ID.String()),
		slog.Time("next_run", p.NextRunAt),
	)
}
