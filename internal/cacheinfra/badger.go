package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/codec"
)

type BadgerConfig struct {
	Dir      string
	InMemory bool
	// TTL of every entry, zero meaning no expiry.
	TTL time.Duration
}

func (c BadgerConfig) Validate() error {
	if !c.InMemory && c.Dir == "" {
		return &ConfigError{Field: "Dir", Message: "required unless InMemory is set"}
	}
	if c.TTL < 0 {
		return &ConfigError{Field: "TTL", Message: "must be non-negative"}
	}
	return nil
}

// BadgerCache persists encoded values in an embedded badger database. Keys
// are prefixed with the namespace so several namespaces may share a
// directory through separate stores.
type BadgerCache struct {
	id     string
	cfg    BadgerConfig
	codec  codec.Codec
	db     *badger.DB
	prefix []byte
}

var (
	_ cache.Cache        = (*BadgerCache)(nil)
	_ cache.Configurable = (*BadgerCache)(nil)
)

func NewBadgerCache(id string, cfg BadgerConfig, cd codec.Codec) (*BadgerCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cd == nil {
		cd = codec.Msgpack{}
	}
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache %s: open badger: %w", id, err)
	}
	return &BadgerCache{id: id, cfg: cfg, codec: cd, db: db, prefix: []byte(id + ":")}, nil
}

func (c *BadgerCache) Properties() map[string]cache.Property {
	var ignored bool
	return map[string]cache.Property{
		"ttl": durationProperty("TTL", &c.cfg.TTL, &ignored),
	}
}

func (c *BadgerCache) ID() string { return c.id }

func (c *BadgerCache) key(k *cache.CacheKey) []byte {
	return append(append([]byte(nil), c.prefix...), k.String()...)
}

func (c *BadgerCache) Put(_ context.Context, key *cache.CacheKey, value any) error {
	if !cacheable(key) {
		return nil
	}
	data, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache %s: encode %T: %w", c.id, value, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(c.key(key), data)
		if c.cfg.TTL > 0 {
			e = e.WithTTL(c.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
}

func (c *BadgerCache) Get(_ context.Context, key *cache.CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return nil, false, nil
	}
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
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

func (c *BadgerCache) Remove(_ context.Context, key *cache.CacheKey) error {
	if !cacheable(key) {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(c.key(key))
	})
}

func (c *BadgerCache) Clear(context.Context) error {
	return c.db.DropPrefix(c.prefix)
}

func (c *BadgerCache) Size(context.Context) (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = c.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (c *BadgerCache) Close() error { return c.db.Close() }
