package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-sqlmap/cache"
)

// SturdycConfig holds the configuration for the sturdyc store.
type SturdycConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the time-to-live for cached entries.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultSturdycConfig returns a config with sensible defaults for most use cases.
func DefaultSturdycConfig() SturdycConfig {
	return SturdycConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Options converts the config to sturdyc options. Capacity, NumShards, TTL
// and EvictionPercentage go to sturdyc.New directly.
func (c SturdycConfig) Options() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c SturdycConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// SturdycCache is an in-process store with sharded TTL eviction.
type SturdycCache struct {
	id     string
	cfg    SturdycConfig
	client *sturdyc.Client[any]
	dirty  bool
}

var (
	_ cache.Cache        = (*SturdycCache)(nil)
	_ cache.Configurable = (*SturdycCache)(nil)
	_ cache.Initializer  = (*SturdycCache)(nil)
)

// NewSturdycCache validates cfg and creates the sturdyc client.
func NewSturdycCache(id string, cfg SturdycConfig) (*SturdycCache, error) {
	c := &SturdycCache{id: id, cfg: cfg}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SturdycCache) open() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	c.client = sturdyc.New[any](
		c.cfg.Capacity,
		c.cfg.NumShards,
		c.cfg.TTL,
		c.cfg.EvictionPercentage,
		c.cfg.Options()...,
	)
	c.dirty = false
	return nil
}

func (c *SturdycCache) Properties() map[string]cache.Property {
	return map[string]cache.Property{
		"capacity":           intProperty(&c.cfg.Capacity, &c.dirty),
		"shards":             intProperty(&c.cfg.NumShards, &c.dirty),
		"evictionPercentage": intProperty(&c.cfg.EvictionPercentage, &c.dirty),
		"ttl":                durationProperty("TTL", &c.cfg.TTL, &c.dirty),
		"evictionInterval":   durationProperty("EvictionInterval", &c.cfg.EvictionInterval, &c.dirty),
	}
}

// Initialize recreates the client when properties changed the config.
func (c *SturdycCache) Initialize() error {
	if !c.dirty {
		return nil
	}
	return c.open()
}

func (c *SturdycCache) Config() SturdycConfig { return c.cfg }

func (c *SturdycCache) ID() string { return c.id }

func (c *SturdycCache) Put(_ context.Context, key *cache.CacheKey, value any) error {
	if cacheable(key) {
		c.client.Set(key.String(), value)
	}
	return nil
}

func (c *SturdycCache) Get(_ context.Context, key *cache.CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return nil, false, nil
	}
	v, ok := c.client.Get(key.String())
	return v, ok, nil
}

func (c *SturdycCache) Remove(_ context.Context, key *cache.CacheKey) error {
	if cacheable(key) {
		c.client.Delete(key.String())
	}
	return nil
}

func (c *SturdycCache) Clear(context.Context) error {
	for _, k := range c.client.ScanKeys() {
		c.client.Delete(k)
	}
	return nil
}

func (c *SturdycCache) Size(context.Context) (int, error) {
	return c.client.Size(), nil
}
