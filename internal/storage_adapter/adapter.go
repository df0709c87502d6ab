package storage_adapter

import (
	"context"
	"fmt"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/world"
)

// Open создаёт хранилище чанков по конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (world.ChunkStore, error) {
	switch cfg.Backend {
	case "badger":
		return storage.NewBadgerStore(cfg.Path)
	case "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return storage.NewSQLiteStore(cfg.Path)
	case "redis":
		return storage.NewRedisStore(ctx, cfg.Redis)
	case "postgres":
		db, err := storage.OpenPostgres(cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(ctx, db, cfg.Postgres.Namespace)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, &config.ConfigurationError{
			Field:  "storage.backend",
			Reason: fmt.Sprintf("неизвестный бэкенд %q", cfg.Backend),
		}
	}
}
