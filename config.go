package botitibot

import "time"

// Config holds the runtime knobs shared by the queue manager and the
// scheduler. It is passed explicitly at construction; there is no process
// global. UpdateConfig on the scheduler live-swaps intervals and the
// concurrency bound.
type Config struct {
	// MaxConcurrentTasks bounds how many work units execute simultaneously.
	MaxConcurrentTasks int

	// ContentInterval is the baseline delay between content generation
	// cycles.
	ContentInterval time.Duration

	// ReplyInterval is the baseline delay between reply-check cycles.
	ReplyInterval time.Duration

	// MetricsInterval is the baseline delay between metrics-collection
	// cycles.
	MetricsInterval time.Duration

	// MaxInterval caps interval inflation after rate-limit events. A loop's
	// effective interval doubles on each rate-limit signal up to this cap
	// and halves back toward its baseline on success.
	MaxInterval time.Duration

	// PollInterval is how long the dispatch loop sleeps when the pending
	// queue is empty.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for running work units
	// during graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig mirrors the intervals the agent has always shipped with:
// content hourly, replies every five minutes, metrics every ten.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: 5,
		ContentInterval:    60 * time.Minute,
		ReplyInterval:      5 * time.Minute,
		MetricsInterval:    10 * time.Minute,
		MaxInterval:        4 * time.Hour,
		PollInterval:       100 * time.Millisecond,
		ShutdownTimeout:    30 * time.Second,
	}
}
