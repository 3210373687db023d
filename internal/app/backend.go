package app

import (
	"context"
	"fmt"

	"github.com/goliatone/go-rased/internal/config"
	"github.com/goliatone/go-rased/internal/logger"
	"github.com/goliatone/go-rased/pkg/state"
	"github.com/goliatone/go-rased/pkg/state/redisstore"
	"github.com/goliatone/go-rased/pkg/state/sqlstore"
)

// OpenBackend returns the storage slot backend named by cfg and a closer for
// its connection, nil when there is nothing to release.
func OpenBackend(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (state.Store, func() error, error) {
	if log == nil {
		log = logger.Nop()
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return state.NewMemoryStore(), nil, nil
	case config.BackendFile, "":
		store, err := state.NewFileStore(cfg.Dir, state.WithFileLogger(log.With("component", "filestore")))
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.BackendSQLite, config.BackendPostgres:
		db, err := sqlstore.Open(cfg.Backend, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("sqlstore: %w", err)
		}
		return sqlstore.New(db), sqlDB.Close, nil
	case config.BackendRedis:
		store, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL.Duration,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("app: unsupported storage backend %q", cfg.Backend)
	}
}
