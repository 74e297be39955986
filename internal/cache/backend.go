package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/colthorp/proximity-cli/internal/config"
	"github.com/colthorp/proximity-cli/internal/core"
)

// SQLiteFileName is the database file created under the cache dir by the sqlite driver.
const SQLiteFileName = "proximity.db"

// NewBackend builds the backend selected by cfg.Driver. The returned close
// function releases any database handle and is never nil.
func NewBackend(ctx context.Context, cfg config.CacheConfig) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case core.CacheDriverFile, "":
		return NewFilesystemBackend(cfg.Dir), noop, nil

	case core.CacheDriverMemory:
		return NewMemoryBackend(), noop, nil

	case core.CacheDriverSQLite:
		dir := cfg.Dir
		if dir == "" {
			dir = core.CacheRoot()
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, eris.Wrap(err, "cache: create cache dir")
		}
		b, err := NewSQLiteBackend(filepath.Join(dir, SQLiteFileName))
		if err != nil {
			return nil, nil, err
		}
		if err := b.Migrate(ctx); err != nil {
			b.Close() //nolint:errcheck
			return nil, nil, err
		}
		zap.L().Debug("cache: using sqlite backend", zap.String("path", b.path))
		return b, b.Close, nil

	case core.CacheDriverPostgres:
		b, err := NewPostgresBackend(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := b.Migrate(ctx); err != nil {
			b.Close() //nolint:errcheck
			return nil, nil, err
		}
		return b, b.Close, nil
	}

	return nil, nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
}
