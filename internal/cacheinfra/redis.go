package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/codec"
)

var ErrNilClient = errors.New("redis cache: nil client")

// RedisClient is the subset of go-redis the store needs.
type RedisClient = goredis.UniversalClient

type RedisConfig struct {
	Client RedisClient
	// Addr is dialed when Client is nil.
	Addr   string
	Prefix string
	// TTL of every entry, zero meaning no expiry.
	TTL time.Duration
}

// RedisCache shares a namespace between processes. Keys are
// "<prefix>:<namespace>:<cache key>".
type RedisCache struct {
	id    string
	cfg   RedisConfig
	codec codec.Codec
	rdb   RedisClient
	owned bool
	dirty bool
}

var (
	_ cache.Cache        = (*RedisCache)(nil)
	_ cache.Configurable = (*RedisCache)(nil)
	_ cache.Initializer  = (*RedisCache)(nil)
)

// NewRedisCache uses cfg.Client when set. Without a client and without an
// address the store stays unusable until the "addr" property is applied.
func NewRedisCache(id string, cfg RedisConfig, cd codec.Codec) (*RedisCache, error) {
	if cd == nil {
		cd = codec.Msgpack{}
	}
	c := &RedisCache{id: id, cfg: cfg, codec: cd, rdb: cfg.Client}
	if c.rdb == nil && cfg.Addr != "" {
		c.dial()
	}
	return c, nil
}

func (c *RedisCache) dial() {
	if c.owned && c.rdb != nil {
		_ = c.rdb.Close()
	}
	c.rdb = goredis.NewClient(&goredis.Options{Addr: c.cfg.Addr})
	c.owned = true
}

func (c *RedisCache) Properties() map[string]cache.Property {
	return map[string]cache.Property{
		"addr": {Kind: cache.KindString, Set: func(v any) error {
			c.cfg.Addr = v.(string)
			c.dirty = true
			return nil
		}},
		"prefix": {Kind: cache.KindString, Set: func(v any) error {
			c.cfg.Prefix = v.(string)
			return nil
		}},
		"ttl": durationProperty("TTL", &c.cfg.TTL, new(bool)),
	}
}

// Initialize dials the configured address unless a client was supplied.
func (c *RedisCache) Initialize() error {
	if c.dirty && c.cfg.Client == nil {
		c.dial()
	}
	c.dirty = false
	if c.rdb == nil {
		return ErrNilClient
	}
	return nil
}

func (c *RedisCache) ID() string { return c.id }

func (c *RedisCache) namespace() string {
	if c.cfg.Prefix == "" {
		return c.id + ":"
	}
	return c.cfg.Prefix + ":" + c.id + ":"
}

func (c *RedisCache) key(k *cache.CacheKey) string { return c.namespace() + k.String() }

func (c *RedisCache) Put(ctx context.Context, key *cache.CacheKey, value any) error {
	if !cacheable(key) {
		return nil
	}
	data, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache %s: encode %T: %w", c.id, value, err)
	}
	return c.rdb.Set(ctx, c.key(key), data, c.cfg.TTL).Err()
}

func (c *RedisCache) Get(ctx context.Context, key *cache.CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return nil, false, nil
	}
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
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

func (c *RedisCache) Remove(ctx context.Context, key *cache.CacheKey) error {
	if !cacheable(key) {
		return nil
	}
	return c.rdb.Del(ctx, c.key(key)).Err()
}

// Clear deletes every key of the namespace, scanning in batches.
func (c *RedisCache) Clear(ctx context.Context) error {
	var batch []string
	iter := c.rdb.Scan(ctx, 0, c.namespace()+"*", 500).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

func (c *RedisCache) Size(ctx context.Context) (int, error) {
	n := 0
	iter := c.rdb.Scan(ctx, 0, c.namespace()+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

// Close releases the client only when the store dialed it itself.
func (c *RedisCache) Close() error {
	if c.owned && c.rdb != nil {
		if err := c.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
