// Package sched drives the agent's periodic work: three independent
// control loops (content generation, reply checking, metrics collection)
// that hand their work to the queue manager each cycle, plus a
// cron-expression post plan for recurring scheduled content.
//
// Each loop owns an interval that starts at its configured baseline,
// doubles when the cycle hits a platform rate limit (capped at
// MaxInterval), and halves back toward the baseline on success. A platform
// that rejects the agent's credentials is taken out of rotation without
// touching the other platforms or the loop itself.
package sched
