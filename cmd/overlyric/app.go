package main

import (
	"fmt"
	"log/slog"

	"karolbroda.com/overlyric/internal/artwork"
	"karolbroda.com/overlyric/internal/cache"
	"karolbroda.com/overlyric/internal/config"
	"karolbroda.com/overlyric/internal/lrclib"
	"karolbroda.com/overlyric/internal/resolver"
)

// openCache returns nil when caching is disabled.
func openCache(cfg *config.Config) (*cache.DiskCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		dir = cache.DefaultDir()
	}
	return cache.New(dir, cfg.CacheTTL())
}

// requireCache opens the cache even when the overlay would run without it.
func requireCache(cfg *config.Config) (*cache.DiskCache, error) {
	dir := cfg.Cache.Dir
	if dir == "" {
		dir = cache.DefaultDir()
	}
	return cache.New(dir, cfg.CacheTTL())
}

func newResolver(cfg *config.Config, logger *slog.Logger) (*resolver.Resolver, error) {
	client, err := lrclib.New(cfg.LrclibURL, cfg.HTTPTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create lrclib client: %w", err)
	}

	diskCache, err := openCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	opts := resolver.Options{
		Threshold: cfg.DurationThreshold(),
		Logger:    logger,
	}
	// a nil *DiskCache inside the interface would not compare equal to nil
	if diskCache != nil {
		opts.Cache = diskCache
	}
	return resolver.New(client, opts), nil
}

func newExtractor(cfg *config.Config) (*artwork.Extractor, error) {
	clusterer, err := artwork.ClustererByName(cfg.Theme.Clusterer, cfg.Theme.Seed)
	if err != nil {
		return nil, err
	}
	return artwork.NewExtractor(cfg.Theme.Clusters, clusterer), nil
}
