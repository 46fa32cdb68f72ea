package cache

import (
	"container/list"
	"context"
	"fmt"
)

const defaultEvictionSize = 1024

// LRUCache evicts the least recently used key from its delegate once more
// than size keys have been put. It is not safe for concurrent use on its own.
type LRUCache struct {
	delegate Cache
	size     int
	order    *list.List
	index    map[string]*list.Element
}

var (
	_ Cache        = (*LRUCache)(nil)
	_ Configurable = (*LRUCache)(nil)
)

func NewLRUCache(delegate Cache) *LRUCache {
	return &LRUCache{
		delegate: delegate,
		size:     defaultEvictionSize,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// LRU is the Decorator for LRUCache and the default eviction policy.
func LRU(delegate Cache) (Cache, error) { return NewLRUCache(delegate), nil }

func (c *LRUCache) Unwrap() Cache { return c.delegate }
func (c *LRUCache) ID() string    { return c.delegate.ID() }

// SetSize changes the capacity. Existing keys above the new capacity are
// evicted on the next put.
func (c *LRUCache) SetSize(size int) { c.size = size }

func (c *LRUCache) Properties() map[string]Property {
	return map[string]Property{
		"size": {Kind: KindInt, Set: func(v any) error {
			n := v.(int)
			if n <= 0 {
				return fmt.Errorf("cache: lru size must be positive, got %d", n)
			}
			c.SetSize(n)
			return nil
		}},
	}
}

func (c *LRUCache) Put(ctx context.Context, key *CacheKey, value any) error {
	if err := c.delegate.Put(ctx, key, value); err != nil {
		return err
	}
	if !cacheable(key) {
		return nil
	}
	return c.cycle(ctx, key)
}

func (c *LRUCache) cycle(ctx context.Context, key *CacheKey) error {
	s := key.String()
	if el, ok := c.index[s]; ok {
		c.order.MoveToBack(el)
	} else {
		c.index[s] = c.order.PushBack(key)
	}
	for c.order.Len() > c.size {
		eldest := c.order.Front()
		c.order.Remove(eldest)
		evicted := eldest.Value.(*CacheKey)
		delete(c.index, evicted.String())
		if err := c.delegate.Remove(ctx, evicted); err != nil {
			return err
		}
	}
	return nil
}

func (c *LRUCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	if cacheable(key) {
		if el, ok := c.index[key.String()]; ok {
			c.order.MoveToBack(el)
		}
	}
	return c.delegate.Get(ctx, key)
}

func (c *LRUCache) Remove(ctx context.Context, key *CacheKey) error {
	if cacheable(key) {
		if el, ok := c.index[key.String()]; ok {
			c.order.Remove(el)
			delete(c.index, key.String())
		}
	}
	return c.delegate.Remove(ctx, key)
}

func (c *LRUCache) Clear(ctx context.Context) error {
	c.order.Init()
	clear(c.index)
	return c.delegate.Clear(ctx)
}

func (c *LRUCache) Size(ctx context.Context) (int, error) { return c.delegate.Size(ctx) }
