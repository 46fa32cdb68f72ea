package cache

import "context"

// PerpetualCache is the default base store: an unbounded map with no locking
// and no eviction. The standard decorators supply both.
type PerpetualCache struct {
	id      string
	entries map[string]any
}

var _ Cache = (*PerpetualCache)(nil)

func NewPerpetualCache(id string) *PerpetualCache {
	return &PerpetualCache{id: id, entries: make(map[string]any)}
}

// PerpetualFactory is the Factory used when no implementation is configured.
func PerpetualFactory(id string) (Cache, error) {
	return NewPerpetualCache(id), nil
}

func (c *PerpetualCache) ID() string { return c.id }

func (c *PerpetualCache) Put(_ context.Context, key *CacheKey, value any) error {
	if !cacheable(key) {
		return nil
	}
	c.entries[key.String()] = value
	return nil
}

func (c *PerpetualCache) Get(_ context.Context, key *CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return nil, false, nil
	}
	v, ok := c.entries[key.String()]
	return v, ok, nil
}

func (c *PerpetualCache) Remove(_ context.Context, key *CacheKey) error {
	if cacheable(key) {
		delete(c.entries, key.String())
	}
	return nil
}

func (c *PerpetualCache) Clear(context.Context) error {
	clear(c.entries)
	return nil
}

func (c *PerpetualCache) Size(context.Context) (int, error) {
	return len(c.entries), nil
}
