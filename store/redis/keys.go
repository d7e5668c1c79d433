package redis

// Redis key naming conventions for botitibot data.
// All keys are prefixed with "botitibot:" to avoid collisions.

const keyPrefix = "botitibot:"

// ── Task keys ──

// taskKey returns the key for a scheduled-task entity: botitibot:task:{id}
func taskKey(taskID string) string { return keyPrefix + "task:" + taskID }

// pendingTasksKey is the Sorted Set of pending task IDs scored by
// scheduled_at (unix milliseconds).
const pendingTasksKey = keyPrefix + "tasks:pending"

// ── Post keys ──

// postKey returns the key for a post entity: botitibot:post:{id}
func postKey(postID string) string { return keyPrefix + "post:" + postID }

// postsByTimeKey is the Sorted Set of post IDs scored by created_at
// (unix milliseconds).
const postsByTimeKey = keyPrefix + "posts:by_time"

// postIndexKey maps "{platform}:{platformPostID}" to post IDs for
// idempotent saves.
const postIndexKey = keyPrefix + "post_index"

// ── Comment keys ──

// commentKey returns the key for a comment entity, keyed by platform
// comment id: botitibot:comment:{platform}:{platformCommentID}
func commentKey(platform, platformCommentID string) string {
	return keyPrefix + "comment:" + platform + ":" + platformCommentID
}

// commentIndexKey maps comment IDs to their entity keys so replies can
// be recorded by comment id.
const commentIndexKey = keyPrefix + "comment_index"

// unrepliedCommentsKey is the Sorted Set of unreplied comment entity
// keys scored by created_at (unix milliseconds).
const unrepliedCommentsKey = keyPrefix + "comments:unreplied"
