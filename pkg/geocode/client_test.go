package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kmz2csv/internal/store"
)

// newProvider returns a test server that counts calls and serves the given
// body with status 200.
func newProvider(body string, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
}

func newTestClient(srvURL string, cache store.GeocodeCache) *Client {
	return NewClient(cache,
		WithBaseURL(srvURL),
		WithThrottle(time.Millisecond),
	)
}

func TestLookup_NearbyPointsShareOneProviderCall(t *testing.T) {
	var calls atomic.Int32
	srv := newProvider(`{"address":{"road":"Jalan Sudirman"}}`, &calls)
	defer srv.Close()

	c := newTestClient(srv.URL, store.NewMemory())
	ctx := context.Background()

	// Both coordinates round to the same 5-decimal key.
	street, err := c.Lookup(ctx, -6.200001, 106.800001)
	require.NoError(t, err)
	require.NotNil(t, street)
	assert.Equal(t, "Jalan Sudirman", *street)

	street, err = c.Lookup(ctx, -6.200004, 106.800004)
	require.NoError(t, err)
	require.NotNil(t, street)
	assert.Equal(t, "Jalan Sudirman", *street)

	assert.Equal(t, int32(1), calls.Load(), "second lookup must be served from cache")
}

func TestLookup_DistinctKeysCallProviderTwice(t *testing.T) {
	var calls atomic.Int32
	srv := newProvider(`{"address":{"road":"Some Road"}}`, &calls)
	defer srv.Close()

	c := newTestClient(srv.URL, store.NewMemory())
	ctx := context.Background()

	_, err := c.Lookup(ctx, -6.2, 106.8)
	require.NoError(t, err)
	_, err = c.Lookup(ctx, -6.3, 106.9)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestLookup_CachedNilStreetNotRequeried(t *testing.T) {
	var calls atomic.Int32
	srv := newProvider(`{"address":{"suburb":"Menteng"}}`, &calls)
	defer srv.Close()

	c := newTestClient(srv.URL, store.NewMemory())
	ctx := context.Background()

	street, err := c.Lookup(ctx, 1.5, 2.5)
	require.NoError(t, err)
	assert.Nil(t, street)

	street, err = c.Lookup(ctx, 1.5, 2.5)
	require.NoError(t, err)
	assert.Nil(t, street)

	assert.Equal(t, int32(1), calls.Load(), "a stored null result is still a cache hit")
}

func TestLookup_StreetPriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"road wins", `{"address":{"road":"Main Rd","residential":"Res St","pedestrian":"Walk Way"}}`, "Main Rd"},
		{"residential fallback", `{"address":{"residential":"Res St","pedestrian":"Walk Way"}}`, "Res St"},
		{"pedestrian fallback", `{"address":{"pedestrian":"Walk Way"}}`, "Walk Way"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newProvider(tt.body, &calls)
			defer srv.Close()

			c := newTestClient(srv.URL, store.NewMemory())
			street, err := c.Lookup(context.Background(), float64(i), float64(i))
			require.NoError(t, err)
			require.NotNil(t, street)
			assert.Equal(t, tt.want, *street)
		})
	}
}

func TestLookup_ProviderFailurePersistsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cache := store.NewMemory()
	c := newTestClient(srv.URL, cache)

	_, err := c.Lookup(context.Background(), -6.2, 106.8)
	require.Error(t, err)

	n, err := cache.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "failed lookups must not poison the cache")
}

func TestLookup_MalformedPayloadIsAnError(t *testing.T) {
	var calls atomic.Int32
	srv := newProvider(`{"address":`, &calls)
	defer srv.Close()

	c := newTestClient(srv.URL, store.NewMemory())
	_, err := c.Lookup(context.Background(), -6.2, 106.8)
	require.Error(t, err)
}

func TestLookup_SendsExactCoordinateAndUserAgent(t *testing.T) {
	var gotLat, gotLon, gotZoom, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLat = r.URL.Query().Get("lat")
		gotLon = r.URL.Query().Get("lon")
		gotZoom = r.URL.Query().Get("zoom")
		gotUA = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `{"address":{}}`)
	}))
	defer srv.Close()

	c := NewClient(store.NewMemory(),
		WithBaseURL(srv.URL),
		WithThrottle(time.Millisecond),
		WithUserAgent("kmz2csv-test/0.1 (ci)"),
	)

	_, err := c.Lookup(context.Background(), -6.2000014, 106.8000019)
	require.NoError(t, err)

	// The provider sees the exact coordinate; only the cache key is rounded.
	assert.Equal(t, "-6.2000014", gotLat)
	assert.Equal(t, "106.8000019", gotLon)
	assert.Equal(t, "18", gotZoom)
	assert.Equal(t, "kmz2csv-test/0.1 (ci)", gotUA)
}

func TestLookup_CacheHitSkipsThrottle(t *testing.T) {
	var calls atomic.Int32
	srv := newProvider(`{"address":{"road":"Slow Rd"}}`, &calls)
	defer srv.Close()

	// A second provider call would have to wait out the full interval, so a
	// fast second lookup proves the hit path never touches the limiter.
	c := NewClient(store.NewMemory(),
		WithBaseURL(srv.URL),
		WithThrottle(time.Hour),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Lookup(ctx, -6.2, 106.8)
	require.NoError(t, err)

	start := time.Now()
	street, err := c.Lookup(ctx, -6.2, 106.8)
	require.NoError(t, err)
	require.NotNil(t, street)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookup_RawResponseStoredTruncated(t *testing.T) {
	long := `{"address":{"road":"Big Rd"},"pad":"` + strings.Repeat("x", 3000) + `"}`
	var calls atomic.Int32
	srv := newProvider(long, &calls)
	defer srv.Close()

	cache := store.NewMemory()
	c := newTestClient(srv.URL, cache)

	_, err := c.Lookup(context.Background(), 3.3, 4.4)
	require.NoError(t, err)

	entry, err := cache.Get(context.Background(), store.NewCacheKey(3.3, 4.4))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.LessOrEqual(t, len(entry.RawResponse), 2000)
}
