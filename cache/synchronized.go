package cache

import (
	"context"
	"sync"
)

// SynchronizedCache serializes every operation on the namespace behind one lock.
type SynchronizedCache struct {
	mu       sync.Mutex
	delegate Cache
}

var _ Cache = (*SynchronizedCache)(nil)

func NewSynchronizedCache(delegate Cache) *SynchronizedCache {
	return &SynchronizedCache{delegate: delegate}
}

func (c *SynchronizedCache) Unwrap() Cache { return c.delegate }
func (c *SynchronizedCache) ID() string    { return c.delegate.ID() }

func (c *SynchronizedCache) Put(ctx context.Context, key *CacheKey, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Put(ctx, key, value)
}

func (c *SynchronizedCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Get(ctx, key)
}

func (c *SynchronizedCache) Remove(ctx context.Context, key *CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Remove(ctx, key)
}

func (c *SynchronizedCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Clear(ctx)
}

func (c *SynchronizedCache) Size(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Size(ctx)
}
