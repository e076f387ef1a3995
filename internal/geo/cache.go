package geo

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/raumwerk/standort-cli/internal/scoring"
)

// LookupCache persists successful lookup results between runs. GetLookup
// reports ok=false for a miss; both methods may fail without affecting
// scoring.
type LookupCache interface {
	GetLookup(ctx context.Context, key string) (place string, value float64, ok bool, err error)
	PutLookup(ctx context.Context, key, place string, value float64) error
}

// CachedSources wraps a scoring.GeoLookup with a persistent cache. Only
// successful lookups are cached; failures stay visible to the scorer so
// its fallback policy applies. Cache errors are logged and degrade to live
// lookups.
type CachedSources struct {
	inner scoring.GeoLookup
	cache LookupCache
}

// NewCachedSources wraps inner with cache.
func NewCachedSources(inner scoring.GeoLookup, cache LookupCache) *CachedSources {
	return &CachedSources{inner: inner, cache: cache}
}

// TransitQuality implements scoring.GeoLookup.
func (c *CachedSources) TransitQuality(ctx context.Context, municipality string) (string, float64, error) {
	key := cacheKey("transit", strings.ToLower(strings.TrimSpace(municipality)))
	if class, score, ok := c.checkCache(ctx, key); ok {
		return class, score, nil
	}
	class, score, err := c.inner.TransitQuality(ctx, municipality)
	if err != nil {
		return "", 0, err
	}
	c.storeCache(ctx, key, class, score)
	return class, score, nil
}

// NearestStop implements scoring.GeoLookup.
func (c *CachedSources) NearestStop(ctx context.Context, lat, lon float64) (string, float64, error) {
	return c.cachedDistance(ctx, "stop", lat, lon, c.inner.NearestStop)
}

// NearestMotorwayAccess implements scoring.GeoLookup.
func (c *CachedSources) NearestMotorwayAccess(ctx context.Context, lat, lon float64) (string, float64, error) {
	return c.cachedDistance(ctx, "motorway", lat, lon, c.inner.NearestMotorwayAccess)
}

// NearestParking implements scoring.GeoLookup.
func (c *CachedSources) NearestParking(ctx context.Context, lat, lon float64) (string, float64, error) {
	return c.cachedDistance(ctx, "parking", lat, lon, c.inner.NearestParking)
}

type distanceLookup func(ctx context.Context, lat, lon float64) (string, float64, error)

func (c *CachedSources) cachedDistance(ctx context.Context, op string, lat, lon float64, lookup distanceLookup) (string, float64, error) {
	key := cacheKey(op, fmt.Sprintf("%.5f", lat), fmt.Sprintf("%.5f", lon))
	if place, meters, ok := c.checkCache(ctx, key); ok {
		return place, meters, nil
	}
	place, meters, err := lookup(ctx, lat, lon)
	if err != nil {
		return "", 0, err
	}
	c.storeCache(ctx, key, place, meters)
	return place, meters, nil
}

func (c *CachedSources) checkCache(ctx context.Context, key string) (string, float64, bool) {
	place, value, ok, err := c.cache.GetLookup(ctx, key)
	if err != nil {
		zap.L().Warn("geo: lookup cache read failed", zap.String("key", keyPrefix(key)), zap.Error(err))
		return "", 0, false
	}
	if ok {
		zap.L().Debug("geo: lookup cache hit", zap.String("key", keyPrefix(key)))
	}
	return place, value, ok
}

func (c *CachedSources) storeCache(ctx context.Context, key, place string, value float64) {
	if err := c.cache.PutLookup(ctx, key, place, value); err != nil {
		zap.L().Warn("geo: lookup cache write failed", zap.String("key", keyPrefix(key)), zap.Error(err))
	}
}

// cacheKey returns SHA-256 hex of the op and its normalized arguments.
// Coordinates are formatted to five decimals, about a meter, so repeated
// runs over the same portfolio hit the cache.
func cacheKey(op string, parts ...string) string {
	h := sha256.Sum256([]byte(op + "|" + strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}

func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
