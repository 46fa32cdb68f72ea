package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-sqlmap/codec"
)

type row struct {
	ID   int64  `msgpack:"id"`
	Name string `msgpack:"name"`
}

func key(id any) *CacheKey { return NewCacheKey("ns.select", id) }

func mustGet(t *testing.T, c Cache, k *CacheKey) (any, bool) {
	t.Helper()
	v, ok, err := c.Get(context.Background(), k)
	require.NoError(t, err)
	return v, ok
}

func TestPerpetualCache(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetualCache("users")

	require.NoError(t, c.Put(ctx, key(1), []any{"a"}))
	require.NoError(t, c.Put(ctx, key(2), []any{}))

	v, ok := mustGet(t, c, key(1))
	assert.True(t, ok)
	assert.Equal(t, []any{"a"}, v)

	v, ok = mustGet(t, c, key(2))
	assert.True(t, ok, "an empty result is a hit")
	assert.Equal(t, []any{}, v)

	require.NoError(t, c.Remove(ctx, key(1)))
	_, ok = mustGet(t, c, key(1))
	assert.False(t, ok)

	size, _ := c.Size(ctx)
	assert.Equal(t, 1, size)
	require.NoError(t, c.Clear(ctx))
	size, _ = c.Size(ctx)
	assert.Equal(t, 0, size)
}

func TestPerpetualCache_IgnoresNullKeys(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetualCache("users")
	require.NoError(t, c.Put(ctx, NewCacheKey("row"), "value"))

	_, ok := mustGet(t, c, NewCacheKey("row"))
	assert.False(t, ok)
	size, _ := c.Size(ctx)
	assert.Zero(t, size)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(NewPerpetualCache("users"))
	c.SetSize(2)

	require.NoError(t, c.Put(ctx, key(1), "one"))
	require.NoError(t, c.Put(ctx, key(2), "two"))
	mustGet(t, c, key(1))
	require.NoError(t, c.Put(ctx, key(3), "three"))

	_, ok := mustGet(t, c, key(2))
	assert.False(t, ok, "key 2 was least recently used")
	_, ok = mustGet(t, c, key(1))
	assert.True(t, ok)
	_, ok = mustGet(t, c, key(3))
	assert.True(t, ok)
}

func TestFIFOCache_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewFIFOCache(NewPerpetualCache("users"))
	c.SetSize(2)

	require.NoError(t, c.Put(ctx, key(1), "one"))
	require.NoError(t, c.Put(ctx, key(2), "two"))
	mustGet(t, c, key(1))
	require.NoError(t, c.Put(ctx, key(3), "three"))

	_, ok := mustGet(t, c, key(1))
	assert.False(t, ok, "key 1 was inserted first")
	_, ok = mustGet(t, c, key(2))
	assert.True(t, ok)
}

func TestScheduledCache_ClearsLazily(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	c := NewScheduledCache(NewPerpetualCache("users"), time.Minute)
	c.now = func() time.Time { return now }
	c.lastClear = now

	require.NoError(t, c.Put(ctx, key(1), "one"))
	now = now.Add(30 * time.Second)
	_, ok := mustGet(t, c, key(1))
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = mustGet(t, c, key(1))
	assert.False(t, ok)

	size, err := c.Unwrap().Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size, "the whole namespace is wiped")
}

func TestSerializedCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewSerializedCache(NewPerpetualCache("users"), nil)

	in := []row{{ID: 1, Name: "ada"}}
	require.NoError(t, c.Put(ctx, key(1), in))

	v, ok := mustGet(t, c, key(1))
	require.True(t, ok)
	out := v.([]row)
	assert.Equal(t, in, out)

	out[0].Name = "changed"
	again, _ := mustGet(t, c, key(1))
	assert.Equal(t, "ada", again.([]row)[0].Name)
}

func TestSerializedCache_PreservesRowTypes(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"msgpack", "cbor", "json"} {
		t.Run(name, func(t *testing.T) {
			cdc, err := codec.ByName(name)
			require.NoError(t, err)
			c := NewSerializedCache(NewPerpetualCache("users"), cdc)

			in := []any{&row{ID: 1, Name: "ada"}, row{ID: 2, Name: "grace"}, nil}
			require.NoError(t, c.Put(ctx, key(1), in))

			v, ok := mustGet(t, c, key(1))
			require.True(t, ok)
			out, isList := v.([]any)
			require.True(t, isList, "got %T", v)
			require.Len(t, out, 3)

			first, isPtr := out[0].(*row)
			require.True(t, isPtr, "element came back as %T", out[0])
			assert.Equal(t, &row{ID: 1, Name: "ada"}, first)
			assert.NotSame(t, in[0], first, "hits are copies")
			assert.Equal(t, row{ID: 2, Name: "grace"}, out[1])
			assert.Nil(t, out[2])

			first.Name = "changed"
			again, _ := mustGet(t, c, key(1))
			assert.Equal(t, "ada", again.([]any)[0].(*row).Name)
		})
	}
}

func TestLoggingCache_HitRatio(t *testing.T) {
	ctx := context.Background()
	c := NewLoggingCache(NewPerpetualCache("users"), nil)
	assert.Zero(t, c.HitRatio())

	require.NoError(t, c.Put(ctx, key(1), "one"))
	mustGet(t, c, key(1))
	mustGet(t, c, key(2))

	assert.Equal(t, int64(2), c.Requests())
	assert.Equal(t, int64(1), c.Hits())
	assert.InDelta(t, 0.5, c.HitRatio(), 0.0001)
}

func TestSynchronizedCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewSynchronizedCache(NewLRUCache(NewPerpetualCache("users")))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Put(ctx, key(i*1000+j), j)
				_, _, _ = c.Get(ctx, key(j))
			}
		}(i)
	}
	wg.Wait()

	size, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1024, size)
}

func TestBlockingCache_SecondReaderWaitsForFirstLoad(t *testing.T) {
	ctx := context.Background()
	c := NewBlockingCache(NewSynchronizedCache(NewPerpetualCache("users")))
	k := key(1)

	var loads atomic.Int32
	load := func() (any, error) {
		v, ok, err := c.Get(ctx, k)
		if err != nil || ok {
			return v, err
		}
		loads.Add(1)
		time.Sleep(50 * time.Millisecond)
		value := []any{"loaded"}
		return value, c.Put(ctx, k, value)
	}

	_, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	require.False(t, ok, "first reader misses and holds the key lock")

	done := make(chan any, 1)
	go func() {
		v, err := load()
		if err != nil {
			done <- err
			return
		}
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	loads.Add(1)
	require.NoError(t, c.Put(ctx, k, []any{"loaded"}))

	select {
	case got := <-done:
		assert.Equal(t, []any{"loaded"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("second reader never returned")
	}
	assert.Equal(t, int32(1), loads.Load(), "only the first reader loads")
}

func TestBlockingCache_Timeout(t *testing.T) {
	ctx := context.Background()
	c := NewBlockingCache(NewPerpetualCache("users"))
	c.SetTimeout(20 * time.Millisecond)

	_, ok, err := c.Get(ctx, key(1))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = c.Get(ctx, key(1))
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, c.Remove(ctx, key(1)))
	_, _, err = c.Get(ctx, key(1))
	assert.NoError(t, err, "lock released through Remove")
}

type failingCache struct {
	*PerpetualCache
	err error
}

func (f *failingCache) Get(context.Context, *CacheKey) (any, bool, error) { return nil, false, f.err }

func TestBlockingCache_ReleasesOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store unavailable")
	inner := &failingCache{PerpetualCache: NewPerpetualCache("users"), err: boom}
	c := NewBlockingCache(inner)
	c.SetTimeout(20 * time.Millisecond)

	_, _, err := c.Get(ctx, key(1))
	assert.ErrorIs(t, err, boom)

	inner.err = nil
	_, _, err = c.Get(ctx, key(1))
	assert.NoError(t, err, "failed load must not leave the key locked")
}

func TestBlockingCache_RemoveWithoutLock(t *testing.T) {
	c := NewBlockingCache(NewPerpetualCache("users"))
	assert.ErrorIs(t, c.Remove(context.Background(), key(1)), ErrUnacquiredLock)
}

func TestChainAndFind(t *testing.T) {
	base := NewPerpetualCache("users")
	c := NewSynchronizedCache(NewLoggingCache(NewLRUCache(base), nil))

	chain := Chain(c)
	require.Len(t, chain, 4)
	assert.Same(t, base, chain[3])

	lc, ok := Find[*LoggingCache](c)
	assert.True(t, ok)
	assert.NotNil(t, lc)

	_, ok = Find[*BlockingCache](c)
	assert.False(t, ok)
}
