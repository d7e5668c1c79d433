package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/id"
	"github.com/bermudi/botitibot/sched"
)

// SavePost records a newly published post. Re-saving the same platform
// post id is a no-op so republish retries stay idempotent.
func (s *Store) SavePost(ctx context.Context, p *sched.Post) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = p.CreatedAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO botitibot_posts (
			id, platform, platform_post_id, content,
			likes, replies, reposts, views,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10
		)
		ON CONFLICT (platform, platform_post_id) DO NOTHING`,
		p.ID.String(), p.Platform, p.PlatformPostID, p.Content,
		p.Likes, p.Replies, p.Reposts, p.Views,
		p.CreatedAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("botitibot/postgres: save post: %w", err)
	}
	return nil
}

// RecentPosts returns posts created at or after since, newest first.
func (s *Store) RecentPosts(ctx context.Context, since time.Time) ([]*sched.Post, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, platform, platform_post_id, content,
		       likes, replies, reposts, views,
		       created_at, updated_at
		FROM botitibot_posts
		WHERE created_at >= $1
		ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("botitibot/postgres: recent posts: %w", err)
	}
	defer rows.Close()

	var posts []*sched.Post
	for rows.Next() {
		p, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("botitibot/postgres: scan post: %w", scanErr)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botitibot/postgres: iterate posts: %w", err)
	}
	return posts, nil
}

// UpsertComment inserts a comment or refreshes an existing one, keyed by
// platform comment id. The conditional update never touches a comment
// already marked replied.
func (s *Store) UpsertComment(ctx context.Context, c *sched.Comment) error {
	commentID := c.ID
	if commentID.IsNil() {
		commentID = id.NewCommentID()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO botitibot_comments (
			id, post_id, platform, platform_comment_id,
			author, content, replied, reply_id, reply_content, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, FALSE, '', '', $7
		)
		ON CONFLICT (platform, platform_comment_id) DO UPDATE
		SET author = EXCLUDED.author, content = EXCLUDED.content
		WHERE botitibot_comments.replied = FALSE`,
		commentID.String(), c.PostID.String(), c.Platform, c.PlatformCommentID,
		c.Author, c.Content, createdAt,
	)
	if err != nil {
		return fmt.Errorf("botitibot/postgres: upsert comment: %w", err)
	}
	return nil
}

// UnrepliedComments returns comments not yet replied to, oldest first.
func (s *Store) UnrepliedComments(ctx context.Context) ([]*sched.Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, post_id, platform, platform_comment_id,
		       author, content, replied, reply_id, reply_content, created_at
		FROM botitibot_comments
		WHERE replied = FALSE
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("botitibot/postgres: unreplied comments: %w", err)
	}
	defer rows.Close()

	var comments []*sched.Comment
	for rows.Next() {
		c, scanErr := scanComment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("botitibot/postgres: scan comment: %w", scanErr)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botitibot/postgres: iterate comments: %w", err)
	}
	return comments, nil
}

// MarkCommentReplied records the published reply for a comment.
func (s *Store) MarkCommentReplied(ctx context.Context, commentID, replyID, replyContent string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE botitibot_comments
		SET replied = TRUE, reply_id = $2, reply_content = $3
		WHERE id = $1`,
		commentID, replyID, replyContent,
	)
	if err != nil {
		return fmt.Errorf("botitibot/postgres: mark comment replied: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return botitibot.ErrCommentNotFound
	}
	return nil
}

// UpdateMetrics stores an engagement snapshot for a post.
func (s *Store) UpdateMetrics(ctx context.Context, postID string, m *sched.Metrics) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE botitibot_posts
		SET likes = $2, replies = $3, reposts = $4, views = $5, updated_at = NOW()
		WHERE id = $1`,
		postID, m.Likes, m.Replies, m.Reposts, m.Views,
	)
	if err != nil {
		return fmt.Errorf("botitibot/postgres: update metrics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return botitibot.ErrPostNotFound
	}
	return nil
}

// ── scan helpers ──

func scanPost(row pgx.Row) (*sched.Post, error) {
	var (
		p     sched.Post
		rawID string
	)
	err := row.Scan(
		&rawID, &p.Platform, &p.PlatformPostID, &p.Content,
		&p.Likes, &p.Replies, &p.Reposts, &p.Views,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := id.ParsePostID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse post id %q: %w", rawID, err)
	}
	p.ID = parsed
	return &p, nil
}

func scanComment(row pgx.Row) (*sched.Comment, error) {
	var (
		c         sched.Comment
		rawID     string
		rawPostID string
	)
	err := row.Scan(
		&rawID, &rawPostID, &c.Platform, &c.PlatformCommentID,
		&c.Author, &c.Content, &c.Replied, &c.ReplyID, &c.ReplyContent, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := id.ParseCommentID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse comment id %q: %w", rawID, err)
	}
	c.ID = parsed

	parsedPost, err := id.ParsePostID(rawPostID)
	if err != nil {
		return nil, fmt.Errorf("parse post id %q: %w", rawPostID, err)
	}
	c.PostID = parsedPost
	return &c, nil
}
