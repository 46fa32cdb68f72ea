// Package cache provides the cache abstraction shared by the executors, the
// composite CacheKey that identifies a query, and the decorator pipeline that
// turns a bare store into a namespace (second-level) cache.
//
// # Overview
//
// A namespace cache is assembled once at configuration time by Build:
//
//	users, err := cache.Build(cache.BuilderConfig{
//		ID:            "users",
//		ClearInterval: time.Hour,
//		Blocking:      true,
//	})
//
// With no implementation configured the base store is a PerpetualCache and the
// result is, from the outside in:
//
//	Blocking -> Synchronized -> Logging -> [Serialized] -> [Scheduled] -> LRU -> Perpetual
//
// A custom implementation is trusted to handle its own eviction and
// concurrency and is only wrapped with the Logging decorator.
//
// # Keys
//
// CacheKey accumulates values in a fixed order and compares positionally.
// Keys built from fewer than two values are "null keys": they never equal
// another key instance and every store in this package treats them as
// uncacheable.
//
// # Sessions
//
// Writes from a session reach a namespace cache only through a
// TransactionalCacheManager, which stages puts and clears until commit and
// discards them on rollback.
//
// # Concurrency
//
// Namespace caches are shared across sessions. The Synchronized decorator
// holds one lock per namespace; the Blocking decorator holds one lock per key
// so a miss for K parks concurrent readers of K until the first reader
// populates it. The Scheduled decorator clears lazily on access and never
// starts a goroutine.
package cache
