package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// BlockingCache holds a per-key lock from a miss until the missing value is
// put (or the lock is released through Remove). Concurrent readers of the
// same key wait instead of loading it again.
//
// A reader must not miss the same key twice without putting or removing it
// in between: the second Get would wait on its own lock.
type BlockingCache struct {
	delegate Cache
	timeout  time.Duration
	locks    *xsync.MapOf[string, chan struct{}]
}

var (
	_ Cache        = (*BlockingCache)(nil)
	_ Configurable = (*BlockingCache)(nil)
)

func NewBlockingCache(delegate Cache) *BlockingCache {
	return &BlockingCache{delegate: delegate, locks: xsync.NewMapOf[string, chan struct{}]()}
}

func (c *BlockingCache) Unwrap() Cache { return c.delegate }
func (c *BlockingCache) ID() string    { return c.delegate.ID() }

// SetTimeout bounds how long a reader waits for another reader's lock.
// Zero waits until the lock is released or the context ends.
func (c *BlockingCache) SetTimeout(d time.Duration) { c.timeout = d }

func (c *BlockingCache) Properties() map[string]Property {
	return map[string]Property{
		"timeout": {Kind: KindInt64, Set: func(v any) error {
			c.SetTimeout(time.Duration(v.(int64)) * time.Millisecond)
			return nil
		}},
	}
}

func (c *BlockingCache) acquire(ctx context.Context, key *CacheKey) error {
	k := key.String()

	var expired <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		latch := make(chan struct{})
		held, loaded := c.locks.LoadOrStore(k, latch)
		if !loaded {
			return nil
		}
		select {
		case <-held:
		case <-expired:
			return fmt.Errorf("%w: cache %s, key %s", ErrLockTimeout, c.ID(), k)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *BlockingCache) release(key *CacheKey) bool {
	latch, ok := c.locks.LoadAndDelete(key.String())
	if ok {
		close(latch)
	}
	return ok
}

func (c *BlockingCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return c.delegate.Get(ctx, key)
	}
	if err := c.acquire(ctx, key); err != nil {
		return nil, false, err
	}
	v, ok, err := c.delegate.Get(ctx, key)
	if err != nil || ok {
		c.release(key)
	}
	return v, ok, err
}

func (c *BlockingCache) Put(ctx context.Context, key *CacheKey, value any) error {
	if !cacheable(key) {
		return c.delegate.Put(ctx, key, value)
	}
	defer c.release(key)
	return c.delegate.Put(ctx, key, value)
}

// Remove only releases the lock taken by a missed Get; the entry itself is left alone.
func (c *BlockingCache) Remove(_ context.Context, key *CacheKey) error {
	if !cacheable(key) {
		return nil
	}
	if !c.release(key) {
		return fmt.Errorf("%w: cache %s, key %s", ErrUnacquiredLock, c.ID(), key)
	}
	return nil
}

func (c *BlockingCache) Clear(ctx context.Context) error { return c.delegate.Clear(ctx) }

func (c *BlockingCache) Size(ctx context.Context) (int, error) { return c.delegate.Size(ctx) }
