// Package executor turns mapped statements into database work.
//
// Every executor owns a session-scoped local cache, a queue of deferred
// association loads and a nesting depth for nested queries; that shared
// behavior lives in BaseExecutor. The Simple, Reuse and Batch strategies
// differ only in how native statements are prepared and reused.
// CachingExecutor decorates any of them with the cross-session namespace
// cache and must be the outermost layer.
//
// An executor belongs to one session and is not safe for concurrent use.
package executor
