package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// RedisStore хранит записи чанков в Redis.
// Ключи: <prefix>chunk:x:y, <prefix>meta и множество <prefix>chunks со списком сохранённых чанков.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logging.GetStorageLogger().Info("Подключено к Redis %s (db=%d, prefix=%q)", cfg.Addr, cfg.DB, cfg.KeyPrefix)
	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

func (rs *RedisStore) key(k string) string {
	return rs.keyPrefix + k
}

// SaveChunk сохраняет запись чанка и добавляет его в индекс
func (rs *RedisStore) SaveChunk(ctx context.Context, snap *world.ChunkSnapshot) error {
	data, err := EncodeChunk(snap)
	if err != nil {
		return err
	}

	k := chunkKey(snap.Coords)
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.key(k), data, 0)
		pipe.SAdd(ctx, rs.key("chunks"), k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения чанка %v в Redis: %w", snap.Coords, err)
	}
	return nil
}

// LoadChunk загружает запись чанка
func (rs *RedisStore) LoadChunk(ctx context.Context, coords vec.Vec2) (*world.ChunkSnapshot, error) {
	data, err := rs.client.Get(ctx, rs.key(chunkKey(coords))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения чанка %v из Redis: %w", coords, err)
	}
	return DecodeChunk(data)
}

// DeleteChunk удаляет запись чанка и убирает его из индекса
func (rs *RedisStore) DeleteChunk(ctx context.Context, coords vec.Vec2) error {
	k := chunkKey(coords)
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rs.key(k))
		pipe.SRem(ctx, rs.key("chunks"), k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления чанка %v из Redis: %w", coords, err)
	}
	return nil
}

// SaveMeta сохраняет метаданные мира
func (rs *RedisStore) SaveMeta(ctx context.Context, meta *world.WorldMeta) error {
	data, err := EncodeMeta(meta)
	if err != nil {
		return err
	}
	if err := rs.client.Set(ctx, rs.key(metaKey), data, 0).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения метаданных в Redis: %w", err)
	}
	return nil
}

// LoadMeta загружает метаданные мира
func (rs *RedisStore) LoadMeta(ctx context.Context) (*world.WorldMeta, error) {
	data, err := rs.client.Get(ctx, rs.key(metaKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMetaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных из Redis: %w", err)
	}
	return DecodeMeta(data)
}

// Count возвращает количество сохранённых чанков
func (rs *RedisStore) Count(ctx context.Context) (int64, error) {
	return rs.client.SCard(ctx, rs.key("chunks")).Result()
}

// Close закрывает соединение с Redis
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
