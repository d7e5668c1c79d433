package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/id"
	"github.com/bermudi/botitibot/sched"
	"github.com/bermudi/botitibot/task"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Task Store tests
// ──────────────────────────────────────────────────

func newScheduled(taskID string, status task.Status, at time.Time) *task.ScheduledTask {
	now := time.Now().UTC()
	return &task.ScheduledTask{
		TaskID:      taskID,
		Kind:        "create_post",
		Payload:     []byte(`{"test":true}`),
		ScheduledAt: at,
		Priority:    task.PriorityMedium,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestRecordScheduled(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	st := newScheduled("task-1", task.StatusQueued, time.Now().UTC())

	if err := s.RecordScheduled(ctx, st); err != nil {
		t.Fatalf("RecordScheduled returned error: %v", err)
	}
	if err := s.RecordScheduled(ctx, st); !errors.Is(err, botitibot.ErrTaskAlreadyExists) {
		t.Fatalf("duplicate RecordScheduled = %v, want ErrTaskAlreadyExists", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	st := newScheduled("task-1", task.StatusQueued, time.Now().UTC())
	if err := s.RecordScheduled(ctx, st); err != nil {
		t.Fatalf("RecordScheduled returned error: %v", err)
	}

	if err := s.UpdateStatus(ctx, "task-1", task.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if err := s.UpdateStatus(ctx, "task-missing", task.StatusFailed); !errors.Is(err, botitibot.ErrTaskNotFound) {
		t.Fatalf("UpdateStatus unknown id = %v, want ErrTaskNotFound", err)
	}

	pending, err := s.LoadPending(ctx)
	if err != nil {
		t.Fatalf("LoadPending returned error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("LoadPending after completion = %d records, want 0", len(pending))
	}
}

func TestLoadPendingOrder(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	records := []*task.ScheduledTask{
		newScheduled("task-late", task.StatusQueued, now.Add(2*time.Hour)),
		newScheduled("task-early", task.StatusQueued, now.Add(30*time.Minute)),
		newScheduled("task-deferred", task.StatusRateLimited, now.Add(time.Hour)),
		newScheduled("task-done", task.StatusCompleted, now),
	}
	for _, st := range records {
		if err := s.RecordScheduled(ctx, st); err != nil {
			t.Fatalf("RecordScheduled(%s) returned error: %v", st.TaskID, err)
		}
	}

	pending, err := s.LoadPending(ctx)
	if err != nil {
		t.Fatalf("LoadPending returned error: %v", err)
	}

	want := []string{"task-early", "task-deferred", "task-late"}
	if len(pending) != len(want) {
		t.Fatalf("LoadPending = %d records, want %d", len(pending), len(want))
	}
	for i, tid := range want {
		if pending[i].TaskID != tid {
			t.Errorf("pending[%d].TaskID = %q, want %q", i, pending[i].TaskID, tid)
		}
	}
}

// ──────────────────────────────────────────────────
// Social Store tests
// ──────────────────────────────────────────────────

func newPost(platform, platformPostID string, createdAt time.Time) *sched.Post {
	return &sched.Post{
		ID:             id.NewPostID(),
		Platform:       platform,
		PlatformPostID: platformPostID,
		Content:        "a post about technology",
		CreatedAt:      createdAt,
	}
}

func TestSaveAndRecentPosts(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	old := newPost(sched.PlatformTwitter, "tw-1", now.Add(-48*time.Hour))
	mid := newPost(sched.PlatformTwitter, "tw-2", now.Add(-2*time.Hour))
	fresh := newPost(sched.PlatformBluesky, "bs-1", now.Add(-time.Minute))

	for _, p := range []*sched.Post{old, mid, fresh} {
		if err := s.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost(%s) returned error: %v", p.PlatformPostID, err)
		}
	}

	recent, err := s.RecentPosts(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("RecentPosts returned error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentPosts = %d posts, want 2", len(recent))
	}
	// Newest first.
	if recent[0].PlatformPostID != "bs-1" || recent[1].PlatformPostID != "tw-2" {
		t.Errorf("RecentPosts order = [%s %s], want [bs-1 tw-2]",
			recent[0].PlatformPostID, recent[1].PlatformPostID)
	}
}

func TestUpdateMetrics(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	p := newPost(sched.PlatformTwitter, "tw-1", time.Now().UTC())
	if err := s.SavePost(ctx, p); err != nil {
		t.Fatalf("SavePost returned error: %v", err)
	}

	m := &sched.Metrics{Likes: 12, Replies: 3, Reposts: 4, Views: 210}
	if err := s.UpdateMetrics(ctx, p.ID.String(), m); err != nil {
		t.Fatalf("UpdateMetrics returned error: %v", err)
	}
	if err := s.UpdateMetrics(ctx, "post-missing", m); !errors.Is(err, botitibot.ErrPostNotFound) {
		t.Fatalf("UpdateMetrics unknown id = %v, want ErrPostNotFound", err)
	}

	recent, err := s.RecentPosts(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentPosts returned error: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("RecentPosts = %d posts, want 1", len(recent))
	}
	got := recent[0]
	if got.Likes != 12 || got.Replies != 3 || got.Reposts != 4 || got.Views != 210 {
		t.Errorf("metrics = {%d %d %d %d}, want {12 3 4 210}",
			got.Likes, got.Replies, got.Reposts, got.Views)
	}
}

func TestUpsertComment(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	postID := id.NewPostID()
	c := &sched.Comment{
		PostID:            postID,
		Platform:          sched.PlatformTwitter,
		PlatformCommentID: "tw-c-1",
		Author:            "somebody",
		Content:           "nice post",
	}

	if err := s.UpsertComment(ctx, c); err != nil {
		t.Fatalf("UpsertComment returned error: %v", err)
	}

	unreplied, err := s.UnrepliedComments(ctx)
	if err != nil {
		t.Fatalf("UnrepliedComments returned error: %v", err)
	}
	if len(unreplied) != 1 {
		t.Fatalf("UnrepliedComments = %d, want 1", len(unreplied))
	}
	first := unreplied[0]
	if first.ID.IsNil() {
		t.Fatal("upsert did not assign a comment id")
	}

	// Refreshing the same platform comment keeps the assigned id.
	if err := s.UpsertComment(ctx, c); err != nil {
		t.Fatalf("second UpsertComment returned error: %v", err)
	}
	unreplied, err = s.UnrepliedComments(ctx)
	if err != nil {
		t.Fatalf("UnrepliedComments returned error: %v", err)
	}
	if len(unreplied) != 1 {
		t.Fatalf("UnrepliedComments after refresh = %d, want 1", len(unreplied))
	}
	if unreplied[0].ID != first.ID {
		t.Errorf("refresh changed comment id from %s to %s", first.ID, unreplied[0].ID)
	}
}

func TestMarkCommentReplied(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	c := &sched.Comment{
		PostID:            id.NewPostID(),
		Platform:          sched.PlatformBluesky,
		PlatformCommentID: "bs-c-1",
		Content:           "what library is this?",
	}
	if err := s.UpsertComment(ctx, c); err != nil {
		t.Fatalf("UpsertComment returned error: %v", err)
	}

	unreplied, err := s.UnrepliedComments(ctx)
	if err != nil {
		t.Fatalf("UnrepliedComments returned error: %v", err)
	}
	if len(unreplied) != 1 {
		t.Fatalf("UnrepliedComments = %d, want 1", len(unreplied))
	}

	commentID := unreplied[0].ID.String()
	if err := s.MarkCommentReplied(ctx, commentID, "bs-r-1", "thanks for reading"); err != nil {
		t.Fatalf("MarkCommentReplied returned error: %v", err)
	}
	if err := s.MarkCommentReplied(ctx, "cmt-missing", "x", "y"); !errors.Is(err, botitibot.ErrCommentNotFound) {
		t.Fatalf("MarkCommentReplied unknown id = %v, want ErrCommentNotFound", err)
	}

	unreplied, err = s.UnrepliedComments(ctx)
	if err != nil {
		t.Fatalf("UnrepliedComments returned error: %v", err)
	}
	if len(unreplied) != 0 {
		t.Fatalf("UnrepliedComments after reply = %d, want 0", len(unreplied))
	}

	// A refresh from the platform must not un-reply the comment.
	if err := s.UpsertComment(ctx, c); err != nil {
		t.Fatalf("UpsertComment after reply returned error: %v", err)
	}
	unreplied, err = s.UnrepliedComments(ctx)
	if err != nil {
		t.Fatalf("UnrepliedComments returned error: %v", err)
	}
	if len(unreplied) != 0 {
		t.Fatalf("refresh un-replied the comment: %d unreplied, want 0", len(unreplied))
	}
}

func TestUnrepliedCommentsOldestFirst(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	for i, age := range []time.Duration{time.Minute, 3 * time.Minute, 2 * time.Minute} {
		c := &sched.Comment{
			PostID:            id.NewPostID(),
			Platform:          sched.PlatformTwitter,
			PlatformCommentID: []string{"tw-c-a", "tw-c-b", "tw-c-c"}[i],
			CreatedAt:         now.Add(-age),
		}
		if err := s.UpsertComment(ctx, c); err != nil {
			t.Fatalf("UpsertComment returned error: %v", err)
		}
	}

	unreplied, err := s.UnrepliedComments(ctx)
	if err != nil {
		t.Fatalf("UnrepliedComments returned error: %v", err)
	}
	want := []string{"tw-c-b", "tw-c-c", "tw-c-a"}
	if len(unreplied) != len(want) {
		t.Fatalf("UnrepliedComments = %d, want %d", len(unreplied), len(want))
	}
	for i, pcid := range want {
		if unreplied[i].PlatformCommentID != pcid {
			t.Errorf("unreplied[%d] = %q, want %q", i, unreplied[i].PlatformCommentID, pcid)
		}
	}
}
