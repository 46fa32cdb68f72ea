package cache

import (
	"context"
	"sync/atomic"

	"github.com/goliatone/go-sqlmap/logging"
)

// LoggingCache counts requests and hits and logs the hit ratio on every read.
type LoggingCache struct {
	delegate Cache
	logger   logging.Logger
	requests atomic.Int64
	hits     atomic.Int64
}

var _ Cache = (*LoggingCache)(nil)

func NewLoggingCache(delegate Cache, logger logging.Logger) *LoggingCache {
	return &LoggingCache{delegate: delegate, logger: logging.OrNop(logger)}
}

func (c *LoggingCache) Unwrap() Cache { return c.delegate }
func (c *LoggingCache) ID() string    { return c.delegate.ID() }

func (c *LoggingCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	c.requests.Add(1)
	v, ok, err := c.delegate.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		c.hits.Add(1)
	}
	c.logger.Debug("cache hit ratio", logging.Fields{"cache": c.ID(), "ratio": c.HitRatio()})
	return v, ok, nil
}

// HitRatio is hits over requests, 0 before the first request.
func (c *LoggingCache) HitRatio() float64 {
	requests := c.requests.Load()
	if requests == 0 {
		return 0
	}
	return float64(c.hits.Load()) / float64(requests)
}

func (c *LoggingCache) Requests() int64 { return c.requests.Load() }
func (c *LoggingCache) Hits() int64     { return c.hits.Load() }

func (c *LoggingCache) Put(ctx context.Context, key *CacheKey, value any) error {
	return c.delegate.Put(ctx, key, value)
}

func (c *LoggingCache) Remove(ctx context.Context, key *CacheKey) error {
	return c.delegate.Remove(ctx, key)
}

func (c *LoggingCache) Clear(ctx context.Context) error { return c.delegate.Clear(ctx) }

func (c *LoggingCache) Size(ctx context.Context) (int, error) { return c.delegate.Size(ctx) }
