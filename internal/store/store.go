// Package store persists reverse-geocode results keyed by rounded
// coordinates.
package store

import (
	"context"
	"strconv"
)

// rawResponseLimit caps the diagnostic provider payload kept per entry.
const rawResponseLimit = 2000

// CacheKey identifies one cache entry: latitude and longitude each formatted
// to 5 decimal places, which coalesces points within roughly a meter.
type CacheKey struct {
	Lat string
	Lon string
}

// NewCacheKey rounds a coordinate pair into its cache key.
func NewCacheKey(lat, lon float64) CacheKey {
	return CacheKey{
		Lat: strconv.FormatFloat(lat, 'f', 5, 64),
		Lon: strconv.FormatFloat(lon, 'f', 5, 64),
	}
}

// Entry is one cached lookup result. Street stays nil when the provider
// found no street-like name; RawResponse is diagnostic only and truncated
// before storage.
type Entry struct {
	Key         CacheKey
	Street      *string
	RawResponse string
}

// truncated returns the raw response capped at the storage limit.
func (e *Entry) truncated() string {
	if len(e.RawResponse) > rawResponseLimit {
		return e.RawResponse[:rawResponseLimit]
	}
	return e.RawResponse
}

// GeocodeCache is the persistence interface for geocode results. Get
// returns (nil, nil) on a miss; a stored nil street is a hit. Put upserts,
// last writer wins.
type GeocodeCache interface {
	Get(ctx context.Context, key CacheKey) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
	Migrate(ctx context.Context) error
	Close() error
}
