package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/task"
)

// RecordScheduled persists a new scheduled-task mirror.
func (s *Store) RecordScheduled(ctx context.Context, st *task.ScheduledTask) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO botitibot_tasks (
			task_id, kind, payload, scheduled_at, priority, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8
		)`,
		st.TaskID, st.Kind, st.Payload, st.ScheduledAt,
		int(st.Priority), string(st.Status),
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return botitibot.ErrTaskAlreadyExists
		}
		return fmt.Errorf("botitibot/postgres: record scheduled task: %w", err)
	}
	return nil
}

// UpdateStatus records a status transition for a task id.
func (s *Store) UpdateStatus(ctx context.Context, taskID string, status task.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE botitibot_tasks
		SET status = $2, updated_at = NOW()
		WHERE task_id = $1`,
		taskID, string(status),
	)
	if err != nil {
		return fmt.Errorf("botitibot/postgres: update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return botitibot.ErrTaskNotFound
	}
	return nil
}

// LoadPending returns all records still waiting to run, ordered by
// scheduled time.
func (s *Store) LoadPending(ctx context.Context) ([]*task.ScheduledTask, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, kind, payload, scheduled_at, priority, status,
		       created_at, updated_at
		FROM botitibot_tasks
		WHERE status IN ('queued', 'rate_limited')
		ORDER BY scheduled_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("botitibot/postgres: load pending tasks: %w", err)
	}
	defer rows.Close()

	return collectScheduled(rows)
}

func collectScheduled(rows pgx.Rows) ([]*task.ScheduledTask, error) {
	var pending []*task.ScheduledTask
	for rows.Next() {
		st, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("botitibot/postgres: scan scheduled task: %w", err)
		}
		pending = append(pending, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botitibot/postgres: iterate scheduled tasks: %w", err)
	}
	return pending, nil
}

func scanScheduled(row pgx.Row) (*task.ScheduledTask, error) {
	var (
		st       task.ScheduledTask
		priority int
		status   string
	)
	err := row.Scan(
		&st.TaskID, &st.Kind, &st.Payload, &st.ScheduledAt,
		&priority, &status,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.Priority = task.Priority(priority)
	st.Status = task.Status(status)
	return &st, nil
}
