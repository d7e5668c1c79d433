package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/id"
	"github.com/bermudi/botitibot/sched"
)

// SavePost stores the post as a Hash and indexes it by creation time.
// Re-saving the same platform post id is a no-op.
func (s *Store) SavePost(ctx context.Context, p *sched.Post) error {
	indexField := p.Platform + ":" + p.PlatformPostID

	// HSETNX claims the platform post id; a prior claim means the post
	// is already saved.
	claimed, err := s.client.HSetNX(ctx, postIndexKey, indexField, p.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("botitibot/redis: save post claim index: %w", err)
	}
	if !claimed {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, postKey(p.ID.String()), postToMap(p))
	pipe.ZAdd(ctx, postsByTimeKey, goredis.Z{
		Score:  float64(p.CreatedAt.UnixMilli()),
		Member: p.ID.String(),
	})
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("botitibot/redis: save post: %w", err)
	}
	return nil
}

// RecentPosts returns posts created at or after since, newest first.
func (s *Store) RecentPosts(ctx context.Context, since time.Time) ([]*sched.Post, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, postsByTimeKey, &goredis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("botitibot/redis: recent posts zrange: %w", err)
	}

	posts := make([]*sched.Post, 0, len(ids))
	for _, postID := range ids {
		vals, getErr := s.client.HGetAll(ctx, postKey(postID)).Result()
		if getErr != nil {
			return nil, fmt.Errorf("botitibot/redis: recent posts get: %w", getErr)
		}
		if len(vals) == 0 {
			continue
		}
		p, mapErr := mapToPost(vals)
		if mapErr != nil {
			return nil, mapErr
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// UpsertComment inserts a comment or refreshes an existing one, keyed by
// platform comment id. A comment already marked replied is left alone.
func (s *Store) UpsertComment(ctx context.Context, c *sched.Comment) error {
	key := commentKey(c.Platform, c.PlatformCommentID)

	existing, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("botitibot/redis: upsert comment get: %w", err)
	}
	if replied, _ := strconv.ParseBool(existing["replied"]); replied { //nolint:errcheck // absent field means not replied
		return nil
	}

	cp := *c
	if len(existing) > 0 {
		// Keep the id and timestamps assigned on first sight.
		if parsed, parseErr := id.ParseCommentID(existing["id"]); parseErr == nil {
			cp.ID = parsed
		}
		if createdAt, parseErr := time.Parse(time.RFC3339Nano, existing["created_at"]); parseErr == nil {
			cp.CreatedAt = createdAt
		}
	}
	if cp.ID.IsNil() {
		cp.ID = id.NewCommentID()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, commentToMap(&cp))
	pipe.HSet(ctx, commentIndexKey, cp.ID.String(), key)
	pipe.ZAdd(ctx, unrepliedCommentsKey, goredis.Z{
		Score:  float64(cp.CreatedAt.UnixMilli()),
		Member: key,
	})
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("botitibot/redis: upsert comment: %w", err)
	}
	return nil
}

// UnrepliedComments returns comments not yet replied to, oldest first.
func (s *Store) UnrepliedComments(ctx context.Context) ([]*sched.Comment, error) {
	keys, err := s.client.ZRange(ctx, unrepliedCommentsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("botitibot/redis: unreplied comments zrange: %w", err)
	}

	comments := make([]*sched.Comment, 0, len(keys))
	for _, key := range keys {
		vals, getErr := s.client.HGetAll(ctx, key).Result()
		if getErr != nil {
			return nil, fmt.Errorf("botitibot/redis: unreplied comments get: %w", getErr)
		}
		if len(vals) == 0 {
			continue
		}
		if replied, _ := strconv.ParseBool(vals["replied"]); replied { //nolint:errcheck // absent field means not replied
			continue
		}
		c, mapErr := mapToComment(vals)
		if mapErr != nil {
			return nil, mapErr
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// MarkCommentReplied records the published reply for a comment.
func (s *Store) MarkCommentReplied(ctx context.Context, commentID, replyID, replyContent string) error {
	key, err := s.client.HGet(ctx, commentIndexKey, commentID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return botitibot.ErrCommentNotFound
		}
		return fmt.Errorf("botitibot/redis: mark replied lookup: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"replied", strconv.FormatBool(true),
		"reply_id", replyID,
		"reply_content", replyContent,
	)
	pipe.ZRem(ctx, unrepliedCommentsKey, key)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("botitibot/redis: mark comment replied: %w", err)
	}
	return nil
}

// UpdateMetrics stores an engagement snapshot for a post.
func (s *Store) UpdateMetrics(ctx context.Context, postID string, m *sched.Metrics) error {
	key := postKey(postID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("botitibot/redis: update metrics exists: %w", err)
	}
	if exists == 0 {
		return botitibot.ErrPostNotFound
	}

	_, err = s.client.HSet(ctx, key,
		"likes", strconv.Itoa(m.Likes),
		"replies", strconv.Itoa(m.Replies),
		"reposts", strconv.Itoa(m.Reposts),
		"views", strconv.Itoa(m.Views),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return fmt.Errorf("botitibot/redis: update metrics: %w", err)
	}
	return nil
}

// ── helpers ──

func postToMap(p *sched.Post) map[string]interface{} {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = p.CreatedAt
	}
	return map[string]interface{}{
		"id":               p.ID.String(),
		"platform":         p.Platform,
		"platform_post_id": p.PlatformPostID,
		"content":          p.Content,
		"likes":            strconv.Itoa(p.Likes),
		"replies":          strconv.Itoa(p.Replies),
		"reposts":          strconv.Itoa(p.Reposts),
		"views":            strconv.Itoa(p.Views),
		"created_at":       p.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":       updatedAt.Format(time.RFC3339Nano),
	}
}

func mapToPost(m map[string]string) (*sched.Post, error) {
	postID, err := id.ParsePostID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("botitibot/redis: parse post id: %w", err)
	}

	likes, _ := strconv.Atoi(m["likes"])     //nolint:errcheck // best-effort parse from trusted Redis data
	replies, _ := strconv.Atoi(m["replies"]) //nolint:errcheck // best-effort parse from trusted Redis data
	reposts, _ := strconv.Atoi(m["reposts"]) //nolint:errcheck // best-effort parse from trusted Redis data
	views, _ := strconv.Atoi(m["views"])     //nolint:errcheck // best-effort parse from trusted Redis data

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	return &sched.Post{
		ID:             postID,
		Platform:       m["platform"],
		PlatformPostID: m["platform_post_id"],
		Content:        m["content"],
		Likes:          likes,
		Replies:        replies,
		Reposts:        reposts,
		Views:          views,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func commentToMap(c *sched.Comment) map[string]interface{} {
	return map[string]interface{}{
		"id":                  c.ID.String(),
		"post_id":             c.PostID.String(),
		"platform":            c.Platform,
		"platform_comment_id": c.PlatformCommentID,
		"author":              c.Author,
		"content":             c.Content,
		"replied":             strconv.FormatBool(c.Replied),
		"reply_id":            c.ReplyID,
		"reply_content":       c.ReplyContent,
		"created_at":          c.CreatedAt.Format(time.RFC3339Nano),
	}
}

func mapToComment(m map[string]string) (*sched.Comment, error) {
	commentID, err := id.ParseCommentID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("botitibot/redis: parse comment id: %w", err)
	}
	postID, err := id.ParsePostID(m["post_id"])
	if err != nil {
		return nil, fmt.Errorf("botitibot/redis: parse post id: %w", err)
	}

	replied, _ := strconv.ParseBool(m["replied"])                 //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	return &sched.Comment{
		ID:                commentID,
		PostID:            postID,
		Platform:          m["platform"],
		PlatformCommentID: m["platform_comment_id"],
		Author:            m["author"],
		Content:           m["content"],
		Replied:           replied,
		ReplyID:           m["reply_id"],
		ReplyContent:      m["reply_content"],
		CreatedAt:         createdAt,
	}, nil
}
