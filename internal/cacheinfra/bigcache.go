package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/codec"
)

type BigCacheConfig struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func DefaultBigCacheConfig() BigCacheConfig {
	return BigCacheConfig{LifeWindow: 10 * time.Minute}
}

func (c BigCacheConfig) Validate() error {
	if c.LifeWindow <= 0 {
		return &ConfigError{Field: "LifeWindow", Message: "must be greater than 0"}
	}
	if c.HardMaxCacheSizeMB < 0 {
		return &ConfigError{Field: "HardMaxCacheSizeMB", Message: "must be non-negative"}
	}
	return nil
}

// BigCache keeps encoded values off the Go heap. Entries expire after the
// global LifeWindow.
type BigCache struct {
	id    string
	cfg   BigCacheConfig
	codec codec.Codec
	c     *bc.BigCache
	dirty bool
}

var (
	_ cache.Cache        = (*BigCache)(nil)
	_ cache.Configurable = (*BigCache)(nil)
	_ cache.Initializer  = (*BigCache)(nil)
)

func NewBigCache(id string, cfg BigCacheConfig, cd codec.Codec) (*BigCache, error) {
	if cd == nil {
		cd = codec.Msgpack{}
	}
	c := &BigCache{id: id, cfg: cfg, codec: cd}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *BigCache) open() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	conf := bc.DefaultConfig(c.cfg.LifeWindow)
	conf.Verbose = false
	if c.cfg.CleanWindow > 0 {
		conf.CleanWindow = c.cfg.CleanWindow
	}
	if c.cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = c.cfg.MaxEntriesInWindow
	}
	if c.cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = c.cfg.MaxEntrySize
	}
	if c.cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = c.cfg.HardMaxCacheSizeMB
	}
	inner, err := bc.NewBigCache(conf)
	if err != nil {
		return err
	}
	if c.c != nil {
		_ = c.c.Close()
	}
	c.c = inner
	c.dirty = false
	return nil
}

func (c *BigCache) Properties() map[string]cache.Property {
	return map[string]cache.Property{
		"lifeWindow":         durationProperty("LifeWindow", &c.cfg.LifeWindow, &c.dirty),
		"cleanWindow":        durationProperty("CleanWindow", &c.cfg.CleanWindow, &c.dirty),
		"maxEntriesInWindow": intProperty(&c.cfg.MaxEntriesInWindow, &c.dirty),
		"maxEntrySize":       intProperty(&c.cfg.MaxEntrySize, &c.dirty),
		"hardMaxCacheSizeMB": intProperty(&c.cfg.HardMaxCacheSizeMB, &c.dirty),
	}
}

func (c *BigCache) Initialize() error {
	if !c.dirty {
		return nil
	}
	return c.open()
}

func (c *BigCache) ID() string { return c.id }

func (c *BigCache) Put(_ context.Context, key *cache.CacheKey, value any) error {
	if !cacheable(key) {
		return nil
	}
	data, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache %s: encode %T: %w", c.id, value, err)
	}
	return c.c.Set(key.String(), data)
}

func (c *BigCache) Get(_ context.Context, key *cache.CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return nil, false, nil
	}
	data, err := c.c.Get(key.String())
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := decode(c.codec, data)
	if err != nil {
		return nil, false, fmt.Errorf("cache %s: decode: %w", c.id, err)
	}
	return v, true, nil
}

func (c *BigCache) Remove(_ context.Context, key *cache.CacheKey) error {
	if !cacheable(key) {
		return nil
	}
	if err := c.c.Delete(key.String()); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (c *BigCache) Clear(context.Context) error { return c.c.Reset() }

func (c *BigCache) Size(context.Context) (int, error) { return c.c.Len(), nil }

func (c *BigCache) Close() error { return c.c.Close() }
