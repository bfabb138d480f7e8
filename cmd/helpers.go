package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/streetscope/blockgeo/internal/boundary"
	"github.com/streetscope/blockgeo/internal/locator"
	"github.com/streetscope/blockgeo/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "blockgeo.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadBoundaries reads the boundary file from the flag path, falling back
// to the configured path.
func loadBoundaries(path string) ([]boundary.BlockGroup, error) {
	if path == "" {
		path = cfg.Boundaries.Path
	}
	if path == "" {
		return nil, eris.New("no boundary file: pass --boundaries or set BLOCKGEO_BOUNDARIES_PATH")
	}

	start := time.Now()
	groups, err := boundary.Load(path, cfg.Boundaries.GEOIDKey)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded boundaries",
		zap.String("path", path),
		zap.Int("block_groups", len(groups)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return groups, nil
}

// loadIndex loads boundaries and builds the spatial index.
func loadIndex(path string) (*locator.Index, error) {
	groups, err := loadBoundaries(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ix, err := locator.Build(groups)
	if err != nil {
		return nil, err
	}
	zap.L().Info("built spatial index",
		zap.Int("entries", ix.Size()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ix, nil
}
