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
)

func TestCache_HitWithinTTL(t *testing.T) {
	c := New(10)
	ctx := context.Background()

	var calls atomic.Int64
	loader := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return "value", nil
	}

	v, err := c.Get(ctx, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.Get(ctx, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, int64(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })

	var calls atomic.Int64
	loader := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return calls.Load(), nil
	}

	v, err := c.Get(ctx, "k", 5*time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// still fresh one second before expiry
	now = now.Add(5*time.Minute - time.Second)
	v, err = c.Get(ctx, "k", 5*time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// expired exactly at ttl
	now = now.Add(time.Second)
	v, err = c.Get(ctx, "k", 5*time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(2)
	ctx := context.Background()

	load := func(v string) Loader {
		return func(ctx context.Context) (interface{}, error) { return v, nil }
	}

	_, err := c.Get(ctx, "a", time.Minute, load("a"))
	require.NoError(t, err)
	_, err = c.Get(ctx, "b", time.Minute, load("b"))
	require.NoError(t, err)

	// touch a so b becomes the eviction candidate
	_, err = c.Get(ctx, "a", time.Minute, load("a"))
	require.NoError(t, err)

	_, err = c.Get(ctx, "c", time.Minute, load("c"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	var reloaded atomic.Bool
	_, err = c.Get(ctx, "b", time.Minute, func(ctx context.Context) (interface{}, error) {
		reloaded.Store(true)
		return "b2", nil
	})
	require.NoError(t, err)
	assert.True(t, reloaded.Load(), "b should have been evicted")

	var reloadedA atomic.Bool
	_, err = c.Get(ctx, "a", time.Minute, func(ctx context.Context) (interface{}, error) {
		reloadedA.Store(true)
		return "a2", nil
	})
	require.NoError(t, err)
	assert.False(t, reloadedA.Load(), "a should still be resident")
}

func TestCache_SingleFlight(t *testing.T) {
	c := New(10)
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	loader := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]interface{}, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(ctx, "hot", time.Minute, loader)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	// let all goroutines pile onto the key before releasing the loader
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestCache_LoaderFailureNotCached(t *testing.T) {
	c := New(10)
	ctx := context.Background()

	var calls atomic.Int64
	boom := errors.New("upstream down")
	loader := func(ctx context.Context) (interface{}, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	_, err := c.Get(ctx, "k", time.Minute, loader)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.Get(ctx, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_Invalidate(t *testing.T) {
	c := New(10)
	ctx := context.Background()

	var calls atomic.Int64
	loader := func(ctx context.Context) (interface{}, error) {
		return calls.Add(1), nil
	}

	v, err := c.Get(ctx, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	c.Invalidate("k")

	v, err = c.Get(ctx, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "reference", Key("reference"))
	assert.Equal(t, "history|600036|2026-01-01", Key("history", "600036", "2026-01-01"))
}
