package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	botitibot "github.com/bermudi/botitibot"
	"github.com/bermudi/botitibot/id"
)

// recentWindow is how far back the reply and metrics loops look for posts
// still worth tracking.
const recentWindow = 24 * time.Hour

// contentCycle generates one piece of content and publishes it to every
// enabled platform. A rate-limit signal aborts the cycle so the loop can
// inflate; an unauthorized platform is disabled and the rest continue.
func (s *Scheduler) contentCycle(ctx context.Context) error {
	s.logger.Info("starting content generation cycle")

	content, err := s.gen.GeneratePost(ctx, s.prompt)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}

	for _, client := range s.activeClients() {
		if err := s.publishTo(ctx, client, content); err != nil {
			return err
		}
	}

	s.logger.Info("content generation cycle completed")
	return nil
}

// publishTo posts content on one platform and records the resulting Post.
func (s *Scheduler) publishTo(ctx context.Context, client PlatformClient, content string) error {
	platform := client.Name()

	platformPostID, err := client.Publish(ctx, content)
	if err != nil {
		if s.handlePlatformErr(ctx, platform, err) {
			return nil
		}
		if _, limited := botitibot.AsRateLimit(err); limited {
			return err
		}
		s.logger.Error("failed to publish post",
			slog.String("platform", platform),
			slog.String("error", err.Error()),
		)
		return nil
	}

	now := time.Now().UTC()
	post := &Post{
		ID:             id.NewPostID(),
		Platform:       platform,
		PlatformPostID: platformPostID,
		Content:        content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if saveErr := s.store.SavePost(ctx, post); saveErr != nil {
		s.logger.Error("failed to record post",
			slog.String("platform", platform),
			slog.String("post_id", post.ID.String()),
			slog.String("error", saveErr.Error()),
		)
	}
	return nil
}

// replyCycle refreshes comments under recent posts, then generates and
// publishes a reply for every comment not yet replied to.
func (s *Scheduler) replyCycle(ctx context.Context) error {
	s.logger.Info("starting reply check cycle")

	if err := s.refreshComments(ctx); err != nil {
		return err
	}

	comments, err := s.store.UnrepliedComments(ctx)
	if err != nil {
		return fmt.Errorf("load unreplied comments: %w", err)
	}

	for _, c := range comments {
		client := s.clientFor(c.Platform)
		if client == nil {
			continue
		}

		replyContent, genErr := s.gen.GenerateReply(ctx, c.Content)
		if genErr != nil {
			s.logger.Error("failed to generate reply",
				slog.String("comment_id", c.ID.String()),
				slog.String("error", genErr.Error()),
			)
			continue
		}

		replyID, replyErr := client.Reply(ctx, c.PlatformCommentID, replyContent)
		if replyErr != nil {
			if s.handlePlatformErr(ctx, c.Platform, replyErr) {
				continue
			}
			if _, limited := botitibot.AsRateLimit(replyErr); limited {
				return replyErr
			}
			s.logger.Error("failed to publish reply",
				slog.String("platform", c.Platform),
				slog.String("comment_id", c.ID.String()),
				slog.String("error", replyErr.Error()),
			)
			continue
		}

		if markErr := s.store.MarkCommentReplied(ctx, c.ID.String(), replyID, replyContent); markErr != nil {
			s.logger.Error("failed to mark comment replied",
				slog.String("comment_id", c.ID.String()),
				slog.String("error", markErr.Error()),
			)
		}
	}

	s.logger.Info("reply check cycle completed")
	return nil
}

// refreshComments walks the threads under recent posts and upserts every
// comment found, so the reply pass below sees fresh work.
func (s *Scheduler) refreshComments(ctx context.Context) error {
	posts, err := s.store.RecentPosts(ctx, time.Now().UTC().Add(-recentWindow))
	if err != nil {
		return fmt.Errorf("load recent posts: %w", err)
	}

	for _, p := range posts {
		client := s.clientFor(p.Platform)
		if client == nil {
			continue
		}

		comments, threadErr := client.Thread(ctx, p.PlatformPostID)
		if threadErr != nil {
			if s.handlePlatformErr(ctx, p.Platform, threadErr) {
				continue
			}
			if _, limited := botitibot.AsRateLimit(threadErr); limited {
				return threadErr
			}
			s.logger.Error("failed to fetch thread",
				slog.String("platform", p.Platform),
				slog.String("post_id", p.ID.String()),
				slog.String("error", threadErr.Error()),
			)
			continue
		}

		for _, c := range comments {
			c.PostID = p.ID
			c.Platform = p.Platform
			if upsertErr := s.store.UpsertComment(ctx, c); upsertErr != nil {
				s.logger.Error("failed to upsert comment",
					slog.String("platform_comment_id", c.PlatformCommentID),
					slog.String("error", upsertErr.Error()),
				)
			}
		}
	}
	return nil
}

// metricsCycle collects engagement metrics for posts from the last 24
// hours and stores a snapshot per post.
func (s *Scheduler) metricsCycle(ctx context.Context) error {
	s.logger.Info("starting metrics collection cycle")

	posts, err := s.store.RecentPosts(ctx, time.Now().UTC().Add(-recentWindow))
	if err != nil {
		return fmt.Errorf("load recent posts: %w", err)
	}

	for _, p := range posts {
		client := s.clientFor(p.Platform)
		if client == nil {
			continue
		}

		m, metricsErr := client.Metrics(ctx, p.PlatformPostID)
		if metricsErr != nil {
			if s.handlePlatformErr(ctx, p.Platform, metricsErr) {
				continue
			}
			if _, limited := botitibot.AsRateLimit(metricsErr); limited {
				return metricsErr
			}
			s.logger.Error("failed to collect metrics",
				slog.String("platform", p.Platform),
				slog.String("post_id", p.ID.String()),
				slog.String("error", metricsErr.Error()),
			)
			continue
		}

		if updateErr := s.store.UpdateMetrics(ctx, p.ID.String(), m); updateErr != nil {
			s.logger.Error("failed to store metrics",
				slog.String("post_id", p.ID.String()),
				slog.String("error", updateErr.Error()),
			)
		}
	}

	s.logger.Info("metrics collection cycle completed")
	return nil
}
