package cache

import (
	"context"
	"errors"
)

type stagedEntry struct {
	key   *CacheKey
	value any
}

// TransactionalCache is one session's staging area in front of a shared
// namespace cache. Puts and clears stay local until Commit and vanish on
// Rollback. Reads see the session's own staged puts first.
//
// Keys that missed in the shared cache are remembered so that, for a
// Blocking delegate, their locks are released when the session ends even
// if nothing was put for them.
type TransactionalCache struct {
	delegate      Cache
	clearOnCommit bool
	staged        map[string]stagedEntry
	order         []string
	missed        map[string]*CacheKey
}

var _ Cache = (*TransactionalCache)(nil)

func NewTransactionalCache(delegate Cache) *TransactionalCache {
	return &TransactionalCache{
		delegate: delegate,
		staged:   make(map[string]stagedEntry),
		missed:   make(map[string]*CacheKey),
	}
}

func (c *TransactionalCache) Unwrap() Cache { return c.delegate }
func (c *TransactionalCache) ID() string    { return c.delegate.ID() }

func (c *TransactionalCache) Size(ctx context.Context) (int, error) { return c.delegate.Size(ctx) }

func (c *TransactionalCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	if !cacheable(key) {
		return nil, false, nil
	}
	s := key.String()
	if e, ok := c.staged[s]; ok {
		return e.value, true, nil
	}
	// A key this session already missed is still locked by it on a Blocking
	// delegate; asking again would wait on that lock.
	if _, ok := c.missed[s]; ok {
		return nil, false, nil
	}
	v, ok, err := c.delegate.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.missed[s] = key
	}
	if c.clearOnCommit {
		return nil, false, nil
	}
	return v, ok, nil
}

func (c *TransactionalCache) Put(_ context.Context, key *CacheKey, value any) error {
	if !cacheable(key) {
		return nil
	}
	s := key.String()
	if _, ok := c.staged[s]; !ok {
		c.order = append(c.order, s)
	}
	c.staged[s] = stagedEntry{key: key, value: value}
	return nil
}

// Remove is a no-op: removal is not a transactional operation.
func (c *TransactionalCache) Remove(context.Context, *CacheKey) error { return nil }

// Clear stages a clear of the shared cache and drops everything staged so far.
func (c *TransactionalCache) Clear(context.Context) error {
	c.clearOnCommit = true
	clear(c.staged)
	c.order = c.order[:0]
	return nil
}

// Release gives up a key this session missed without staging a value for
// it, so other sessions waiting on it can load it themselves.
func (c *TransactionalCache) Release(ctx context.Context, key *CacheKey) error {
	if !cacheable(key) {
		return nil
	}
	s := key.String()
	if _, ok := c.missed[s]; !ok {
		return nil
	}
	delete(c.missed, s)
	if _, put := c.staged[s]; put {
		return nil
	}
	return c.delegate.Remove(ctx, key)
}

// Commit applies the staged clear and puts to the shared cache.
func (c *TransactionalCache) Commit(ctx context.Context) error {
	var errs []error
	if c.clearOnCommit {
		if err := c.delegate.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range c.order {
		e := c.staged[s]
		if err := c.delegate.Put(ctx, e.key, e.value); err != nil {
			errs = append(errs, err)
		}
	}
	for s, key := range c.missed {
		if _, put := c.staged[s]; put {
			continue
		}
		if err := c.delegate.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	c.reset()
	return errors.Join(errs...)
}

// Rollback discards everything staged and releases missed keys.
func (c *TransactionalCache) Rollback(ctx context.Context) error {
	var errs []error
	for _, key := range c.missed {
		if err := c.delegate.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	c.reset()
	return errors.Join(errs...)
}

func (c *TransactionalCache) reset() {
	c.clearOnCommit = false
	clear(c.staged)
	clear(c.missed)
	c.order = c.order[:0]
}
