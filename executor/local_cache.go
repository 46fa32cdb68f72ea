package executor

import "github.com/goliatone/go-sqlmap/cache"

type entryState int

const (
	entryAbsent entryState = iota
	// entryPending marks a key whose query is running further up the stack.
	entryPending
	entryPresent
)

type localEntry struct {
	state entryState
	list  []any
}

// localCache is the session-scoped first level cache. Null keys are never
// stored, so they always miss.
type localCache struct {
	entries map[string]localEntry
}

func newLocalCache() *localCache {
	return &localCache{entries: make(map[string]localEntry)}
}

func (c *localCache) lookup(key *cache.CacheKey) localEntry {
	if key.IsNull() {
		return localEntry{}
	}
	return c.entries[key.String()]
}

func (c *localCache) markPending(key *cache.CacheKey) {
	if key.IsNull() {
		return
	}
	c.entries[key.String()] = localEntry{state: entryPending}
}

func (c *localCache) store(key *cache.CacheKey, list []any) {
	if key.IsNull() {
		return
	}
	c.entries[key.String()] = localEntry{state: entryPresent, list: list}
}

func (c *localCache) remove(key *cache.CacheKey) {
	if key.IsNull() {
		return
	}
	delete(c.entries, key.String())
}

func (c *localCache) contains(key *cache.CacheKey) bool {
	return c.lookup(key).state != entryAbsent
}

func (c *localCache) clear() {
	clear(c.entries)
}

func (c *localCache) size() int { return len(c.entries) }
