// Package botitibot is a social-media agent runtime for Go. It periodically
// generates and dispatches work items — content posts, reply checks, metrics
// pulls — against rate-limited platform APIs, under a bounded concurrency
// budget, with automatic retry and graceful cancellation.
//
// botitibot is designed as a library, not a service. Import it, configure a
// store and platform clients, and run the scheduler.
//
// # Quick Start
//
//	cfg := botitibot.DefaultConfig()
//	mgr := manager.New(cfg, manager.WithStore(st))
//	s := sched.New(mgr, generator, st, []sched.PlatformClient{bsky, twitter}, cfg)
//	_ = mgr.Start(ctx)
//	_ = s.Start(ctx)
//
// # Architecture
//
// The core is the queue manager: a priority heap of pending tasks, a
// resizable concurrency permit pool, and a per-operation-type rate-limit
// coordinator, driven by a single dispatch loop. Three scheduler loops feed
// the manager. Content generation, platform API bindings, and persistence
// are external collaborators consumed through narrow interfaces.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package botitibot
