package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache fills a cache from fn on a miss. Errors are returned as is
// and never cached.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache CacheManager[K, V]
	fn    func(ctx context.Context, input I) (V, error)
	skip  bool
}

// NewReadThroughCache creates a ReadThroughCache. With skip set every call
// goes straight to fn.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	skip bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{cache: cache, fn: fn, skip: skip}
}

// Get returns the cached value for key, or computes it from input and caches
// it for ttl. The second result reports a cache hit.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, bool, error) {
	if r.skip {
		v, err := r.fn(ctx, input)
		return v, false, err
	}
	if v, ok := r.cache.Get(ctx, key); ok {
		return v, true, nil
	}

	v, err := r.fn(ctx, input)
	if err != nil {
		return v, false, err
	}
	r.cache.Set(ctx, key, v, ttl)
	return v, false, nil
}
