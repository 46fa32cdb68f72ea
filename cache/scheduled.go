package cache

import (
	"context"
	"time"
)

const defaultClearInterval = time.Hour

// ScheduledCache clears its delegate once the clear interval has elapsed.
// The check happens on access; there is no background timer.
type ScheduledCache struct {
	delegate  Cache
	interval  time.Duration
	lastClear time.Time
	now       func() time.Time
}

var (
	_ Cache        = (*ScheduledCache)(nil)
	_ Configurable = (*ScheduledCache)(nil)
)

func NewScheduledCache(delegate Cache, interval time.Duration) *ScheduledCache {
	if interval <= 0 {
		interval = defaultClearInterval
	}
	return &ScheduledCache{delegate: delegate, interval: interval, lastClear: time.Now(), now: time.Now}
}

func (c *ScheduledCache) Unwrap() Cache { return c.delegate }
func (c *ScheduledCache) ID() string    { return c.delegate.ID() }

func (c *ScheduledCache) SetClearInterval(d time.Duration) { c.interval = d }

func (c *ScheduledCache) Properties() map[string]Property {
	return map[string]Property{
		"clearInterval": {Kind: KindInt64, Set: func(v any) error {
			c.SetClearInterval(time.Duration(v.(int64)) * time.Millisecond)
			return nil
		}},
	}
}

func (c *ScheduledCache) clearWhenStale(ctx context.Context) (bool, error) {
	if c.now().Sub(c.lastClear) <= c.interval {
		return false, nil
	}
	return true, c.Clear(ctx)
}

func (c *ScheduledCache) Put(ctx context.Context, key *CacheKey, value any) error {
	if _, err := c.clearWhenStale(ctx); err != nil {
		return err
	}
	return c.delegate.Put(ctx, key, value)
}

func (c *ScheduledCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	cleared, err := c.clearWhenStale(ctx)
	if err != nil || cleared {
		return nil, false, err
	}
	return c.delegate.Get(ctx, key)
}

func (c *ScheduledCache) Remove(ctx context.Context, key *CacheKey) error {
	cleared, err := c.clearWhenStale(ctx)
	if err != nil || cleared {
		return err
	}
	return c.delegate.Remove(ctx, key)
}

func (c *ScheduledCache) Clear(ctx context.Context) error {
	c.lastClear = c.now()
	return c.delegate.Clear(ctx)
}

func (c *ScheduledCache) Size(ctx context.Context) (int, error) {
	if _, err := c.clearWhenStale(ctx); err != nil {
		return 0, err
	}
	return c.delegate.Size(ctx)
}
