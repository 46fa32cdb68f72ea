package cache

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedPropertyType = errors.New("cache: unsupported property type")
	ErrInvalidFactory          = errors.New("cache: invalid cache factory")
	ErrLockTimeout             = errors.New("cache: timed out waiting for key lock")
	ErrUnacquiredLock          = errors.New("cache: release of a key lock that was never acquired")
)

// Cache is a namespace-scoped store of query results keyed by CacheKey.
//
// Get reports presence separately from the value so a cached empty or nil
// result is a hit. Implementations must treat null keys (see CacheKey.IsNull)
// as uncacheable: Put ignores them and Get always misses.
type Cache interface {
	ID() string
	Put(ctx context.Context, key *CacheKey, value any) error
	Get(ctx context.Context, key *CacheKey) (any, bool, error)
	Remove(ctx context.Context, key *CacheKey) error
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
}

// Decorated is implemented by every decorator in this package.
type Decorated interface {
	Unwrap() Cache
}

// Chain returns c and every cache it wraps, outermost first.
func Chain(c Cache) []Cache {
	var out []Cache
	for c != nil {
		out = append(out, c)
		d, ok := c.(Decorated)
		if !ok {
			break
		}
		c = d.Unwrap()
	}
	return out
}

// Find returns the first cache of type T in c's decorator chain.
func Find[T Cache](c Cache) (T, bool) {
	for _, layer := range Chain(c) {
		if t, ok := layer.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

func cacheable(key *CacheKey) bool {
	return key != nil && !key.IsNull()
}
