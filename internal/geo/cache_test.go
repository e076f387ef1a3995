package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cacheEntry struct {
	place string
	value float64
}

type fakeLookupCache struct {
	entries map[string]cacheEntry
	getErr  error
	putErr  error
}

func newFakeLookupCache() *fakeLookupCache {
	return &fakeLookupCache{entries: make(map[string]cacheEntry)}
}

func (f *fakeLookupCache) GetLookup(_ context.Context, key string) (string, float64, bool, error) {
	if f.getErr != nil {
		return "", 0, false, f.getErr
	}
	e, ok := f.entries[key]
	return e.place, e.value, ok, nil
}

func (f *fakeLookupCache) PutLookup(_ context.Context, key, place string, value float64) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[key] = cacheEntry{place: place, value: value}
	return nil
}

type countingLookup struct {
	transitCalls  int
	stopCalls     int
	motorwayCalls int
	parkingCalls  int
	err           error
}

func (c *countingLookup) TransitQuality(_ context.Context, _ string) (string, float64, error) {
	c.transitCalls++
	return "B", 3.8, c.err
}

func (c *countingLookup) NearestStop(_ context.Context, _, _ float64) (string, float64, error) {
	c.stopCalls++
	return "Bahnhof Zug", 250, c.err
}

func (c *countingLookup) NearestMotorwayAccess(_ context.Context, _, _ float64) (string, float64, error) {
	c.motorwayCalls++
	return "Zug West", 1500, c.err
}

func (c *countingLookup) NearestParking(_ context.Context, _, _ float64) (string, float64, error) {
	c.parkingCalls++
	return "Parkhaus Altstadt", 600, c.err
}

func TestCachedSources_MissThenHit(t *testing.T) {
	ctx := context.Background()
	inner := &countingLookup{}
	cache := newFakeLookupCache()
	src := NewCachedSources(inner, cache)

	class, score, err := src.TransitQuality(ctx, "Zug")
	require.NoError(t, err)
	assert.Equal(t, "B", class)
	assert.InDelta(t, 3.8, score, 1e-9)
	assert.Equal(t, 1, inner.transitCalls)

	class, score, err = src.TransitQuality(ctx, "Zug")
	require.NoError(t, err)
	assert.Equal(t, "B", class)
	assert.InDelta(t, 3.8, score, 1e-9)
	assert.Equal(t, 1, inner.transitCalls, "second call should be served from cache")
}

func TestCachedSources_KeyNormalization(t *testing.T) {
	ctx := context.Background()
	inner := &countingLookup{}
	src := NewCachedSources(inner, newFakeLookupCache())

	_, _, err := src.TransitQuality(ctx, "Zug")
	require.NoError(t, err)
	_, _, err = src.TransitQuality(ctx, "  zug ")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.transitCalls, "case and space variants share a cache entry")
}

func TestCachedSources_DistanceLookups(t *testing.T) {
	ctx := context.Background()
	inner := &countingLookup{}
	cache := newFakeLookupCache()
	src := NewCachedSources(inner, cache)

	for i := 0; i < 2; i++ {
		name, dist, err := src.NearestStop(ctx, 47.17240, 8.51740)
		require.NoError(t, err)
		assert.Equal(t, "Bahnhof Zug", name)
		assert.InDelta(t, 250, dist, 1e-9)

		_, _, err = src.NearestMotorwayAccess(ctx, 47.17240, 8.51740)
		require.NoError(t, err)
		_, _, err = src.NearestParking(ctx, 47.17240, 8.51740)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, inner.stopCalls)
	assert.Equal(t, 1, inner.motorwayCalls)
	assert.Equal(t, 1, inner.parkingCalls)
	assert.Len(t, cache.entries, 3, "same coordinates key separately per lookup")
}

func TestCachedSources_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingLookup{err: assert.AnError}
	cache := newFakeLookupCache()
	src := NewCachedSources(inner, cache)

	_, _, err := src.NearestStop(ctx, 47.17, 8.51)
	require.Error(t, err)
	assert.Empty(t, cache.entries)

	inner.err = nil
	_, _, err = src.NearestStop(ctx, 47.17, 8.51)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.stopCalls, "failed lookup is retried, not served from cache")
}

func TestCachedSources_CacheFailuresDegrade(t *testing.T) {
	ctx := context.Background()

	t.Run("read failure falls through to live lookup", func(t *testing.T) {
		inner := &countingLookup{}
		cache := newFakeLookupCache()
		cache.getErr = assert.AnError
		src := NewCachedSources(inner, cache)

		name, dist, err := src.NearestParking(ctx, 47.17, 8.51)
		require.NoError(t, err)
		assert.Equal(t, "Parkhaus Altstadt", name)
		assert.InDelta(t, 600, dist, 1e-9)
		assert.Equal(t, 1, inner.parkingCalls)
	})

	t.Run("write failure keeps the result", func(t *testing.T) {
		inner := &countingLookup{}
		cache := newFakeLookupCache()
		cache.putErr = assert.AnError
		src := NewCachedSources(inner, cache)

		name, _, err := src.NearestParking(ctx, 47.17, 8.51)
		require.NoError(t, err)
		assert.Equal(t, "Parkhaus Altstadt", name)
	})
}

func TestCacheKey(t *testing.T) {
	k1 := cacheKey("stop", "47.17240", "8.51740")
	k2 := cacheKey("stop", "47.17240", "8.51740")
	k3 := cacheKey("parking", "47.17240", "8.51740")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}
