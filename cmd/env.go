package main

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kmz2csv/internal/export"
	"github.com/sells-group/kmz2csv/internal/store"
	"github.com/sells-group/kmz2csv/pkg/geocode"
)

// env bundles the wired components a command needs: the shared cache store
// and a converter whose geocoder writes through it.
type env struct {
	cache     store.GeocodeCache
	converter *export.Converter
}

// initEnv opens the cache store, runs its migration, and wires the geocode
// client and converter from config.
func initEnv(ctx context.Context) (*env, error) {
	cache, err := store.NewSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, eris.Wrap(err, "init cache store")
	}
	if err := cache.Migrate(ctx); err != nil {
		cache.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate cache store")
	}

	geocoder := geocode.NewClient(cache,
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithThrottle(cfg.Geocode.Throttle()),
		geocode.WithHTTPClient(&http.Client{Timeout: cfg.Geocode.Timeout()}),
	)

	return &env{
		cache:     cache,
		converter: export.NewConverter(geocoder),
	}, nil
}

func (e *env) Close() error {
	return e.cache.Close()
}
