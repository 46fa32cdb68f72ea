package cacheinfra

import (
	"context"
	"time"

	rc "github.com/dgraph-io/ristretto"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-sqlmap/cache"
)

type RistrettoConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	// TTL of every entry, zero meaning no expiry.
	TTL time.Duration
}

func DefaultRistrettoConfig() RistrettoConfig {
	return RistrettoConfig{NumCounters: 1e5, MaxCost: 1e4, BufferItems: 64}
}

func (c RistrettoConfig) Validate() error {
	switch {
	case c.NumCounters <= 0:
		return &ConfigError{Field: "NumCounters", Message: "must be greater than 0"}
	case c.MaxCost <= 0:
		return &ConfigError{Field: "MaxCost", Message: "must be greater than 0"}
	case c.BufferItems <= 0:
		return &ConfigError{Field: "BufferItems", Message: "must be greater than 0"}
	case c.TTL < 0:
		return &ConfigError{Field: "TTL", Message: "must be non-negative"}
	}
	return nil
}

// RistrettoCache is an in-process store with admission based eviction. Every
// entry costs 1, so MaxCost bounds the number of entries. Ristretto cannot
// list its keys, so the store keeps its own index for Size and Clear.
type RistrettoCache struct {
	id    string
	cfg   RistrettoConfig
	c     *rc.Cache
	keys  *xsync.MapOf[string, struct{}]
	dirty bool
}

var (
	_ cache.Cache        = (*RistrettoCache)(nil)
	_ cache.Configurable = (*RistrettoCache)(nil)
	_ cache.Initializer  = (*RistrettoCache)(nil)
)

func NewRistrettoCache(id string, cfg RistrettoConfig) (*RistrettoCache, error) {
	c := &RistrettoCache{id: id, cfg: cfg, keys: xsync.NewMapOf[string, struct{}]()}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RistrettoCache) open() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	inner, err := rc.NewCache(&rc.Config{
		NumCounters: c.cfg.NumCounters,
		MaxCost:     c.cfg.MaxCost,
		BufferItems: c.cfg.BufferItems,
	})
	if err != nil {
		return err
	}
	if c.c != nil {
		c.c.Close()
	}
	c.c = inner
	c.keys.Clear()
	c.dirty = false
	return nil
}

func (c *RistrettoCache) Properties() map[string]cache.Property {
	return map[string]cache.Property{
		"numCounters": int64Property(&c.cfg.NumCounters, &c.dirty),
		"maxCost":     int64Property(&c.cfg.MaxCost, &c.dirty),
		"bufferItems": int64Property(&c.cfg.BufferItems, &c.dirty),
		"ttl":         durationProperty("TTL", &c.cfg.TTL, &c.dirty),
	}
}

func (c *RistrettoCache) Initialize() error {
	if !c.dirty {
		return nil
	}
	return c.open()
}

func (c *RistrettoCache) ID() string { return c.id }

// Put waits for the write buffer so the entry is visible to the next Get.
// Ristretto may still reject the entry under memory pressure.
func (c *RistrettoCache) Put(_ context.Context, key *cache.CacheKey, value any) error {
	if !cacheable(key) {
		return nil
	}
	k := key.String()
	if c.c.SetWithTTL(k, value, 1, c.cfg.TTL) {
		c.keys.Store(k, struct{}{})
	}
	c.c.Wait()
	return nil
}

func (c *RistrettoCache) Get(_ context.Context, key *cache.CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return nil, false, nil
	}
	v, ok := c.c.Get(key.String())
	return v, ok, nil
}

func (c *RistrettoCache) Remove(_ context.Context, key *cache.CacheKey) error {
	if cacheable(key) {
		k := key.String()
		c.c.Del(k)
		c.keys.Delete(k)
	}
	return nil
}

func (c *RistrettoCache) Clear(context.Context) error {
	c.c.Clear()
	c.keys.Clear()
	return nil
}

// Size counts indexed keys that are still resident, pruning the rest.
func (c *RistrettoCache) Size(context.Context) (int, error) {
	n := 0
	c.keys.Range(func(k string, _ struct{}) bool {
		if _, ok := c.c.Get(k); ok {
			n++
		} else {
			c.keys.Delete(k)
		}
		return true
	})
	return n, nil
}

func (c *RistrettoCache) Close() error {
	c.c.Close()
	return nil
}
