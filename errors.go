package botitibot

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Store errors.
	ErrNoStore         = errors.New("botitibot: no store configured")
	ErrStoreClosed     = errors.New("botitibot: store closed")
	ErrMigrationFailed = errors.New("botitibot: migration failed")

	// Not found errors.
	ErrTaskNotFound    = errors.New("botitibot: task not found")
	ErrPostNotFound    = errors.New("botitibot: post not found")
	ErrCommentNotFound = errors.New("botitibot: comment not found")

	// Conflict errors.
	ErrTaskAlreadyExists = errors.New("botitibot: task already exists")
	ErrDuplicatePlan     = errors.New("botitibot: duplicate plan entry")

	// Lifecycle errors.
	ErrManagerClosed   = errors.New("botitibot: manager is shut down")
	ErrSchedulerClosed = errors.New("botitibot: scheduler is stopped")

	// Platform errors.
	ErrUnauthorized = errors.New("botitibot: platform authentication rejected")
)

// RateLimitError is the signal a work unit (or a platform client inside one)
// returns when the remote service throttles a call. It carries the coarse
// operation type whose budget is exhausted and the backoff the service
// suggested. Rate-limit signals are never counted against a task's retry
// budget; the manager defers the task and throttles the whole operation type.
type RateLimitError struct {
	Op      string
	Backoff time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("botitibot: rate limited on %q, retry in %s", e.Op, e.Backoff)
}

// NewRateLimitError builds a rate-limit signal for the given operation type.
func NewRateLimitError(op string, backoff time.Duration) *RateLimitError {
	return &RateLimitError{Op: op, Backoff: backoff}
}

// AsRateLimit unwraps err into a *RateLimitError if one is in the chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// PlatformError wraps a failure from a social platform client with enough
// context for the scheduler to react: an unauthorized failure disables the
// platform, anything else goes through the generic per-cycle error path.
type PlatformError struct {
	Platform string
	Err      error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("botitibot: platform %s: %v", e.Platform, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// Unauthorized reports whether the platform rejected our credentials.
func (e *PlatformError) Unauthorized() bool {
	return errors.Is(e.Err, ErrUnauthorized)
}
