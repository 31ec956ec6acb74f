package main

import (
	"context"
	"fmt"

	"github.com/rohankatakam/reviewscout/internal/cache"
	"github.com/rohankatakam/reviewscout/internal/graph"
	"github.com/rohankatakam/reviewscout/internal/recommend"
	"github.com/rohankatakam/reviewscout/internal/storage"
)

// openStore connects to the configured backend
func openStore() (*storage.SQLStore, error) {
	opts := storage.BatchOptions{
		Size:            cfg.Storage.BatchSize,
		WritesPerSecond: cfg.Storage.WritesPerSecond,
	}

	switch cfg.Storage.Type {
	case "postgres":
		dsn, err := cfg.PostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("failed to build postgres DSN: %w", err)
		}
		return storage.NewPostgresStore(dsn, cfg.Storage.PostgresDriver, logger, opts)
	default:
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger, opts)
	}
}

// openCache returns nil when caching is disabled
func openCache(ctx context.Context) (cache.Cache, error) {
	return cache.Open(ctx, cache.Options{
		Type:      cfg.Cache.Type,
		Path:      cfg.Cache.Path,
		RedisAddr: cfg.Cache.RedisAddr,
		RedisPass: cfg.Cache.RedisPass,
		TTL:       cfg.Cache.TTL,
	})
}

// openSyncer returns nil when graph sync is disabled
func openSyncer(ctx context.Context) (*graph.IdentitySyncer, error) {
	if !cfg.Graph.Enabled {
		return nil, nil
	}
	return graph.NewIdentitySyncer(ctx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
}

// purgeRecommendations drops cached rankings after history changed
func purgeRecommendations(ctx context.Context) {
	c, err := openCache(ctx)
	if err != nil {
		logger.WithError(err).Warn("Cache unavailable, cached recommendations not purged")
		return
	}
	if c == nil {
		return
	}
	defer c.Close()

	if _, err := recommend.NewEngine(nil, engineConfig(), c).InvalidateCache(ctx); err != nil {
		logger.WithError(err).Warn("Failed to purge cached recommendations")
	}
}

func engineConfig() recommend.Config {
	r := cfg.Recommender
	return recommend.Config{
		Strategy:       recommend.Strategy(r.Strategy),
		Lookback:       r.Lookback(),
		WorkloadWindow: r.WorkloadWindow(),
		TopN:           r.TopN,
		Weights: recommend.Weights{
			C1Turnover:  r.Weights.C1Turnover,
			C2Turnover:  r.Weights.C2Turnover,
			C1Retention: r.Weights.C1Retention,
			C2Retention: r.Weights.C2Retention,
		},
		ExcludeUnknown: r.ExcludeUnknownFiles,
		IncludeAuthor:  r.IncludeAuthor,
		CacheTTL:       cfg.Cache.TTL,
	}
}
