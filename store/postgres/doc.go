// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: embedded SQL migrations, ON CONFLICT comment upserts that
// never un-reply a comment, partial indexes for pending-task and
// unreplied-comment scans.
package postgres
