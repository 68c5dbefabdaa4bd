package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/repoindex/internal/config"
)

var (
	_ Store = (*SQLiteStorage)(nil)
	_ Store = (*PostgresStorage)(nil)
)

// Open returns the backend selected by cfg.Driver
func Open(ctx context.Context, cfg config.Storage, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		s, err := NewSQLiteStorage(ctx, cfg.SQLitePath, cfg.InsertBatchSize, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStorage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
