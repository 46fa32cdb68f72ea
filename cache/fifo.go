package cache

import (
	"context"
	"fmt"
)

// FIFOCache evicts keys from its delegate in insertion order once more than
// size keys have been put. It is not safe for concurrent use on its own.
type FIFOCache struct {
	delegate Cache
	size     int
	queue    []*CacheKey
	queued   map[string]struct{}
}

var (
	_ Cache        = (*FIFOCache)(nil)
	_ Configurable = (*FIFOCache)(nil)
)

func NewFIFOCache(delegate Cache) *FIFOCache {
	return &FIFOCache{delegate: delegate, size: defaultEvictionSize, queued: make(map[string]struct{})}
}

func FIFO(delegate Cache) (Cache, error) { return NewFIFOCache(delegate), nil }

func (c *FIFOCache) Unwrap() Cache    { return c.delegate }
func (c *FIFOCache) ID() string       { return c.delegate.ID() }
func (c *FIFOCache) SetSize(size int) { c.size = size }

func (c *FIFOCache) Properties() map[string]Property {
	return map[string]Property{
		"size": {Kind: KindInt, Set: func(v any) error {
			n := v.(int)
			if n <= 0 {
				return fmt.Errorf("cache: fifo size must be positive, got %d", n)
			}
			c.SetSize(n)
			return nil
		}},
	}
}

func (c *FIFOCache) Put(ctx context.Context, key *CacheKey, value any) error {
	if err := c.delegate.Put(ctx, key, value); err != nil {
		return err
	}
	if !cacheable(key) {
		return nil
	}
	if _, ok := c.queued[key.String()]; ok {
		return nil
	}
	c.queue = append(c.queue, key)
	c.queued[key.String()] = struct{}{}
	for len(c.queue) > c.size {
		oldest := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		delete(c.queued, oldest.String())
		if err := c.delegate.Remove(ctx, oldest); err != nil {
			return err
		}
	}
	return nil
}

func (c *FIFOCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	return c.delegate.Get(ctx, key)
}

func (c *FIFOCache) Remove(ctx context.Context, key *CacheKey) error {
	return c.delegate.Remove(ctx, key)
}

func (c *FIFOCache) Clear(ctx context.Context) error {
	c.queue = nil
	clear(c.queued)
	return c.delegate.Clear(ctx)
}

func (c *FIFOCache) Size(ctx context.Context) (int, error) { return c.delegate.Size(ctx) }
