package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/id"
	"github.com/bermudi/botitibot/sched"
	"github.com/bermudi/botitibot/task"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ task.Store  = (*Store)(nil)
	_ sched.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	tasks    map[string]*task.ScheduledTask
	posts    map[string]*sched.Post
	comments map[string]*sched.Comment // key: "platform:platformCommentID"
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		tasks:    make(map[string]*task.ScheduledTask),
		posts:    make(map[string]*sched.Post),
		comments: make(map[string]*sched.Comment),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Task Store
// ──────────────────────────────────────────────────

// RecordScheduled persists a new scheduled-task mirror.
func (m *Store) RecordScheduled(_ context.Context, st *task.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[st.TaskID]; exists {
		return botitibot.ErrTaskAlreadyExists
	}
	cp := *st
	m.tasks[st.TaskID] = &cp
	return nil
}

// UpdateStatus records a status transition for a task id.
func (m *Store) UpdateStatus(_ context.Context, taskID string, status task.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.tasks[taskID]
	if !ok {
		return botitibot.ErrTaskNotFound
	}
	st.Status = status
	st.UpdatedAt = time.Now().UTC()
	return nil
}

// LoadPending returns all records still waiting to run, ordered by
// scheduled time.
func (m *Store) LoadPending(_ context.Context) ([]*task.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := make([]*task.ScheduledTask, 0, len(m.tasks))
	for _, st := range m.tasks {
		if st.Status != task.StatusQueued && st.Status != task.StatusRateLimited {
			continue
		}
		cp := *st
		pending = append(pending, &cp)
	}

	sort.Slice(pending, func(i, k int) bool {
		return pending[i].ScheduledAt.Before(pending[k].ScheduledAt)
	})

	return pending, nil
}

// ──────────────────────────────────────────────────
// Social Store — posts, comments, metrics
// ──────────────────────────────────────────────────

// SavePost records a newly published post.
func (m *Store) SavePost(_ context.Context, p *sched.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	m.posts[p.ID.String()] = &cp
	return nil
}

// RecentPosts returns posts created at or after since, newest first.
func (m *Store) RecentPosts(_ context.Context, since time.Time) ([]*sched.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recent := make([]*sched.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if p.CreatedAt.Before(since) {
			continue
		}
		cp := *p
		recent = append(recent, &cp)
	}

	sort.Slice(recent, func(i, k int) bool {
		return recent[i].CreatedAt.After(recent[k].CreatedAt)
	})

	return recent, nil
}

// UpsertComment inserts a comment or refreshes an existing one, keyed by
// platform comment id. A comment already marked replied keeps its reply
// fields — a refresh from the platform never un-replies it.
func (m *Store) UpsertComment(_ context.Context, c *sched.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := commentKey(c.Platform, c.PlatformCommentID)
	existing, ok := m.comments[key]
	if ok && existing.Replied {
		return nil
	}

	cp := *c
	if ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else if cp.ID.IsNil() {
		cp.ID = id.NewCommentID()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.comments[key] = &cp
	return nil
}

// UnrepliedComments returns comments not yet replied to, oldest first.
func (m *Store) UnrepliedComments(_ context.Context) ([]*sched.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unreplied := make([]*sched.Comment, 0, len(m.comments))
	for _, c := range m.comments {
		if c.Replied {
			continue
		}
		cp := *c
		unreplied = append(unreplied, &cp)
	}

	sort.Slice(unreplied, func(i, k int) bool {
		return unreplied[i].CreatedAt.Before(unreplied[k].CreatedAt)
	})

	return unreplied, nil
}

// MarkCommentReplied records the published reply for a comment.
func (m *Store) MarkCommentReplied(_ context.Context, commentID, replyID, replyContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.comments {
		if c.ID.String() != commentID {
			continue
		}
		c.Replied = true
		c.ReplyID = replyID
		c.ReplyContent = replyContent
		return nil
	}
	return botitibot.ErrCommentNotFound
}

// UpdateMetrics stores an engagement snapshot for a post.
func (m *Store) UpdateMetrics(_ context.Context, postID string, metrics *sched.Metrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[postID]
	if !ok {
		return botitibot.ErrPostNotFound
	}
	p.Likes = metrics.Likes
	p.Replies = metrics.Replies
	p.Reposts = metrics.Reposts
	p.Views = metrics.Views
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func commentKey(platform, platformCommentID string) string {
	return platform + ":" + platformCommentID
}
