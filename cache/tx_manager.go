package cache

import (
	"context"
	"errors"
)

// TransactionalCacheManager keeps one TransactionalCache per shared
// namespace cache touched by a session.
type TransactionalCacheManager struct {
	caches map[Cache]*TransactionalCache
	order  []Cache
}

func NewTransactionalCacheManager() *TransactionalCacheManager {
	return &TransactionalCacheManager{caches: make(map[Cache]*TransactionalCache)}
}

func (m *TransactionalCacheManager) Clear(ctx context.Context, c Cache) error {
	return m.staging(c).Clear(ctx)
}

func (m *TransactionalCacheManager) Get(ctx context.Context, c Cache, key *CacheKey) (any, bool, error) {
	return m.staging(c).Get(ctx, key)
}

func (m *TransactionalCacheManager) Put(ctx context.Context, c Cache, key *CacheKey, value any) error {
	return m.staging(c).Put(ctx, key, value)
}

// Release frees a missed key of c after its load failed.
func (m *TransactionalCacheManager) Release(ctx context.Context, c Cache, key *CacheKey) error {
	return m.staging(c).Release(ctx, key)
}

// Commit applies every namespace's staged writes, continuing past failures.
func (m *TransactionalCacheManager) Commit(ctx context.Context) error {
	var errs []error
	for _, c := range m.order {
		if err := m.caches[c].Commit(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Rollback discards every namespace's staged writes.
func (m *TransactionalCacheManager) Rollback(ctx context.Context) error {
	var errs []error
	for _, c := range m.order {
		if err := m.caches[c].Rollback(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *TransactionalCacheManager) staging(c Cache) *TransactionalCache {
	tc, ok := m.caches[c]
	if !ok {
		tc = NewTransactionalCache(c)
		m.caches[c] = tc
		m.order = append(m.order, c)
	}
	return tc
}
