package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type promptKey string

func TestInMemoryCacheManager(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[promptKey, string]("titles", DefaultExpiration, DefaultCleanupInterval)

	_, ok := c.Get(ctx, "k")
	require.False(t, ok)

	c.Set(ctx, "k", "Fix tests", time.Minute)
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "Fix tests", v)
	require.Equal(t, 1, c.Len())

	v, ok = c.GetWithRefresh(ctx, "k", time.Minute)
	require.True(t, ok)
	require.Equal(t, "Fix tests", v)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	require.False(t, ok)

	c.Set(ctx, "a", "1", time.Minute)
	c.Set(ctx, "b", "2", time.Minute)
	c.Flush(ctx)
	require.Zero(t, c.Len())
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, int]("test", time.Minute, time.Minute)

	c.Set(ctx, "k", 1, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestReadThroughCache(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fn := func(_ context.Context, in string) (string, error) {
		calls++
		if in == "bad" {
			return "", errors.New("upstream failed")
		}
		return "title for " + in, nil
	}

	rt := NewReadThroughCache[string, string, string](
		NewInMemoryCacheManager[string, string]("test", time.Minute, time.Minute), fn, false)

	v, hit, err := rt.Get(ctx, "k1", "p1", time.Minute)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "title for p1", v)

	v, hit, err = rt.Get(ctx, "k1", "p1", time.Minute)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "title for p1", v)
	require.Equal(t, 1, calls)

	_, _, err = rt.Get(ctx, "k2", "bad", time.Minute)
	require.Error(t, err)
	_, _, err = rt.Get(ctx, "k2", "bad", time.Minute)
	require.Error(t, err)
	require.Equal(t, 3, calls, "errors are not cached")
}

func TestReadThroughCache_Skip(t *testing.T) {
	calls := 0
	rt := NewReadThroughCache[string, int, int](
		NewInMemoryCacheManager[string, int]("test", time.Minute, time.Minute),
		func(_ context.Context, in int) (int, error) { calls++; return in, nil },
		true)

	for range 3 {
		_, hit, err := rt.Get(context.Background(), "k", 1, time.Minute)
		require.NoError(t, err)
		require.False(t, hit)
	}
	require.Equal(t, 3, calls)
}
