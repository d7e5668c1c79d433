// Package redis implements store.Store using go-redis/v9. Suitable for
// deployments that already run Redis and do not want a relational schema.
// Entities are stored as Hashes; pending tasks, recent posts, and
// unreplied comments are indexed with Sorted Sets keyed on time.
//
// The caller owns the Redis client lifecycle -- the store never closes it.
// Pass the client through the constructor:
//
//	import (
//	    goredis "github.com/redis/go-redis/v9"
//	    "github.com/bermudi/botitibot/store/redis"
//	)
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	store := redis.New(client)
//	if err := store.Ping(ctx); err != nil { ... }
package redis
