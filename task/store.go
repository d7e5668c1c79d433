package task

import (
	"context"
	"time"
)

// ScheduledTask is the persisted mirror of a task that carries a scheduled
// time. It is written when the task is added, updated when the in-memory
// task reaches a terminal status, and read back at startup to reconstruct
// pending work. The dispatch loop itself never touches it.
type ScheduledTask struct {
	TaskID      string
	Kind        string
	Payload     []byte
	ScheduledAt time.Time
	Priority    Priority
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence collaborator for scheduled tasks. Writes are
// best-effort from the manager's point of view: a failed write is logged
// and the in-memory operation proceeds.
type Store interface {
	// RecordScheduled persists a new scheduled-task mirror.
	RecordScheduled(ctx context.Context, st *ScheduledTask) error

	// UpdateStatus records a status transition for a task id.
	UpdateStatus(ctx context.Context, taskID string, status Status) error

	// LoadPending returns all records whose status is still queued,
	// ordered by scheduled time.
	LoadPending(ctx context.Context) ([]*ScheduledTask, error)
}
