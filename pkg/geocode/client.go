// Package geocode provides cached, rate-limited reverse geocoding of
// coordinates to street names via a Nominatim-style endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/kmz2csv/internal/store"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org/reverse"
	defaultUserAgent = "kmz2csv/1.0 (contact: ops@example.com)"
	defaultThrottle  = 1100 * time.Millisecond
	defaultZoom      = 18
)

// nominatimResponse is the subset of the reverse-geocode payload we read.
type nominatimResponse struct {
	Address struct {
		Road        string `json:"road"`
		Residential string `json:"residential"`
		Pedestrian  string `json:"pedestrian"`
	} `json:"address"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client for provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the reverse-geocoding endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent sets the client identifier sent on every provider request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithThrottle sets the minimum spacing between provider calls. Cache hits
// are never throttled.
func WithThrottle(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithZoom sets the provider zoom level for address detail.
func WithZoom(zoom int) Option {
	return func(c *Client) { c.zoom = zoom }
}

// Client resolves a coordinate to a street name, consulting the cache before
// the provider and persisting what the provider returns.
type Client struct {
	cache      store.GeocodeCache
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
	zoom       int
}

// NewClient creates a reverse-geocoding client backed by the given cache.
func NewClient(cache store.GeocodeCache, opts ...Option) *Client {
	c := &Client{
		cache:      cache,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(defaultThrottle), 1),
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		zoom:       defaultZoom,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves the street name for a coordinate. The cache is keyed by
// the coordinate rounded to 5 decimals; the provider is called with the
// exact coordinate. A cached nil street is a hit and is returned without a
// provider call. Provider failures return an error and persist nothing; the
// caller decides whether that aborts anything.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (*string, error) {
	key := store.NewCacheKey(lat, lon)

	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: cache lookup")
	}
	if cached != nil {
		zap.L().Debug("geocode cache hit",
			zap.String("lat", key.Lat),
			zap.String("lon", key.Lon),
		)
		return cached.Street, nil
	}

	// Provider calls share one limiter so consecutive misses respect the
	// provider's rate-limit contract.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: throttle wait")
	}

	street, raw, err := c.reverse(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, store.Entry{Key: key, Street: street, RawResponse: raw}); err != nil {
		zap.L().Warn("geocode: cache write failed",
			zap.String("lat", key.Lat),
			zap.String("lon", key.Lon),
			zap.Error(err),
		)
	}

	return street, nil
}

// reverse performs the provider call and picks a street-like name from the
// address breakdown: road, else residential, else pedestrian, else nil.
func (c *Client) reverse(ctx context.Context, lat, lon float64) (*string, string, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"zoom":           {strconv.Itoa(c.zoom)},
		"addressdetails": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "geocode: provider request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("geocode: provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", eris.Wrap(err, "geocode: read response")
	}

	var payload nominatimResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", eris.Wrap(err, "geocode: parse response")
	}

	var street *string
	for _, candidate := range []string{
		payload.Address.Road,
		payload.Address.Residential,
		payload.Address.Pedestrian,
	} {
		if candidate != "" {
			street = &candidate
			break
		}
	}

	return street, string(body), nil
}
