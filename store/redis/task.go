package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/task"
)

// RecordScheduled stores the task mirror as a Hash and adds it to the
// pending Sorted Set scored by its scheduled time.
func (s *Store) RecordScheduled(ctx context.Context, st *task.ScheduledTask) error {
	key := taskKey(st.TaskID)

	// Check for duplicate.
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("botitibot/redis: record scheduled check exists: %w", err)
	}
	if exists > 0 {
		return botitibot.ErrTaskAlreadyExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, taskToMap(st))
	pipe.ZAdd(ctx, pendingTasksKey, goredis.Z{
		Score:  float64(st.ScheduledAt.UnixMilli()),
		Member: st.TaskID,
	})
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("botitibot/redis: record scheduled task: %w", err)
	}
	return nil
}

// UpdateStatus records a status transition and keeps the pending index
// in sync: terminal tasks leave the Sorted Set, pending ones stay.
func (s *Store) UpdateStatus(ctx context.Context, taskID string, status task.Status) error {
	key := taskKey(taskID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("botitibot/redis: update status exists: %w", err)
	}
	if exists == 0 {
		return botitibot.ErrTaskNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"status", string(status),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	if status.Terminal() {
		pipe.ZRem(ctx, pendingTasksKey, taskID)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("botitibot/redis: update task status: %w", err)
	}
	return nil
}

// LoadPending returns all pending task mirrors ordered by scheduled time.
func (s *Store) LoadPending(ctx context.Context) ([]*task.ScheduledTask, error) {
	ids, err := s.client.ZRange(ctx, pendingTasksKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("botitibot/redis: load pending zrange: %w", err)
	}

	pending := make([]*task.ScheduledTask, 0, len(ids))
	for _, taskID := range ids {
		vals, getErr := s.client.HGetAll(ctx, taskKey(taskID)).Result()
		if getErr != nil {
			return nil, fmt.Errorf("botitibot/redis: load pending get: %w", getErr)
		}
		if len(vals) == 0 {
			continue // index entry without a hash, skip
		}
		st := mapToTask(vals)
		if st.Status != task.StatusQueued && st.Status != task.StatusRateLimited {
			continue
		}
		pending = append(pending, st)
	}
	return pending, nil
}

// ── helpers ──

func taskToMap(st *task.ScheduledTask) map[string]interface{} {
	return map[string]interface{}{
		"task_id":      st.TaskID,
		"kind":         st.Kind,
		"payload":      string(st.Payload),
		"scheduled_at": st.ScheduledAt.Format(time.RFC3339Nano),
		"priority":     strconv.Itoa(int(st.Priority)),
		"status":       string(st.Status),
		"created_at":   st.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   st.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToTask(m map[string]string) *task.ScheduledTask {
	priority, _ := strconv.Atoi(m["priority"])                          //nolint:errcheck // best-effort parse from trusted Redis data
	scheduledAt, _ := time.Parse(time.RFC3339Nano, m["scheduled_at"])   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])       //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])       //nolint:errcheck // best-effort parse from trusted Redis data

	return &task.ScheduledTask{
		TaskID:      m["task_id"],
		Kind:        m["kind"],
		Payload:     []byte(m["payload"]),
		ScheduledAt: scheduledAt,
		Priority:    task.Priority(priority),
		Status:      task.Status(m["status"]),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}
