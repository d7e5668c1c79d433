package sched

import (
	"context"
	"time"

	"github.com/bermudi/botitibot/id"
)

// Platform names the scheduler rotates over by default.
const (
	PlatformTwitter = "twitter"
	PlatformBluesky = "bluesky"
)

// Post is a published piece of content tracked for engagement metrics.
type Post struct {
	ID             id.PostID
	Platform       string
	PlatformPostID string
	Content        string
	Likes          int
	Replies        int
	Reposts        int
	Views          int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Comment is a platform comment on one of our posts. The reply loop
// generates and publishes a reply for every comment not yet replied to.
type Comment struct {
	ID                id.CommentID
	PostID            id.PostID
	Platform          string
	PlatformCommentID string
	Author            string
	Content           string
	Replied           bool
	ReplyID           string
	ReplyContent      string
	CreatedAt         time.Time
}

// Metrics is an engagement snapshot for a single post.
type Metrics struct {
	Likes   int
	Replies int
	Reposts int
	Views   int
}

// ContentGenerator produces post and reply text. Implementations talk to
// whatever language model backs the agent.
type ContentGenerator interface {
	// GeneratePost produces post content for the given prompt.
	GeneratePost(ctx context.Context, prompt string) (string, error)
	// GenerateReply produces a reply to the given comment text.
	GenerateReply(ctx context.Context, comment string) (string, error)
}

// PlatformClient is a social platform connection. Implementations return
// *botitibot.RateLimitError when the platform throttles a call and
// *botitibot.PlatformError wrapping ErrUnauthorized when credentials are
// rejected.
type PlatformClient interface {
	// Name returns the platform name ("twitter", "bluesky").
	Name() string
	// Publish posts content and returns the platform's post id.
	Publish(ctx context.Context, content string) (string, error)
	// Reply publishes a reply to a comment and returns the reply id.
	Reply(ctx context.Context, platformCommentID, content string) (string, error)
	// Thread fetches the comments under one of our posts.
	Thread(ctx context.Context, platformPostID string) ([]*Comment, error)
	// Metrics fetches the current engagement numbers for a post.
	Metrics(ctx context.Context, platformPostID string) (*Metrics, error)
}

// Store is the persistence collaborator for posts, comments, and
// engagement metrics.
type Store interface {
	// SavePost records a newly published post.
	SavePost(ctx context.Context, p *Post) error
	// RecentPosts returns posts created at or after the given time, newest
	// first.
	RecentPosts(ctx context.Context, since time.Time) ([]*Post, error)
	// UpsertComment inserts a comment or refreshes an existing one, keyed
	// by platform comment id. Replied state is never un-set by an upsert.
	UpsertComment(ctx context.Context, c *Comment) error
	// UnrepliedComments returns comments not yet replied to, oldest first.
	UnrepliedComments(ctx context.Context) ([]*Comment, error)
	// MarkCommentReplied records the published reply for a comment.
	MarkCommentReplied(ctx context.Context, commentID, replyID, replyContent string) error
	// UpdateMetrics stores an engagement snapshot for a post.
	UpdateMetrics(ctx context.Context, postID string, m *Metrics) error
}
