// Package cacheinfra provides namespace cache stores backed by third party
// caches. Each store implements cache.Cache, declares its tuning knobs as
// cache properties and is plugged in through cache.BuilderConfig.Implementation.
package cacheinfra

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/codec"
)

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Options carry what a store cannot get from string properties.
type Options struct {
	// Codec encodes values for byte oriented stores. Nil selects msgpack.
	Codec codec.Codec
	// Redis is the client used by the redis store. When nil, the "addr"
	// property is used to dial one.
	Redis RedisClient
	// BadgerDir is where the badger store keeps its files. Empty means in memory.
	BadgerDir string
}

func (o Options) codec() codec.Codec {
	if o.Codec == nil {
		return codec.Msgpack{}
	}
	return o.Codec
}

// Provider resolves a store by name. The returned factory builds a store
// with default settings that cache properties may then adjust.
func Provider(name string, opts Options) (cache.Factory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sturdyc":
		return func(id string) (cache.Cache, error) {
			return NewSturdycCache(id, DefaultSturdycConfig())
		}, nil
	case "ristretto":
		return func(id string) (cache.Cache, error) {
			return NewRistrettoCache(id, DefaultRistrettoConfig())
		}, nil
	case "bigcache":
		return func(id string) (cache.Cache, error) {
			return NewBigCache(id, DefaultBigCacheConfig(), opts.codec())
		}, nil
	case "badger":
		return func(id string) (cache.Cache, error) {
			return NewBadgerCache(id, BadgerConfig{Dir: opts.BadgerDir, InMemory: opts.BadgerDir == ""}, opts.codec())
		}, nil
	case "redis":
		return func(id string) (cache.Cache, error) {
			return NewRedisCache(id, RedisConfig{Client: opts.Redis, Prefix: "sqlmap"}, opts.codec())
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache provider %q", cache.ErrInvalidFactory, name)
	}
}

func durationProperty(field string, dst *time.Duration, dirty *bool) cache.Property {
	return cache.Property{Kind: cache.KindString, Set: func(v any) error {
		d, err := time.ParseDuration(v.(string))
		if err != nil {
			return &ConfigError{Field: field, Message: err.Error()}
		}
		*dst = d
		*dirty = true
		return nil
	}}
}

func intProperty(dst *int, dirty *bool) cache.Property {
	return cache.Property{Kind: cache.KindInt, Set: func(v any) error {
		*dst = v.(int)
		*dirty = true
		return nil
	}}
}

func int64Property(dst *int64, dirty *bool) cache.Property {
	return cache.Property{Kind: cache.KindInt64, Set: func(v any) error {
		*dst = v.(int64)
		*dirty = true
		return nil
	}}
}

func decode(c codec.Codec, data []byte) (any, error) {
	var v any
	if err := c.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func cacheable(key *cache.CacheKey) bool {
	return key != nil && !key.IsNull()
}
