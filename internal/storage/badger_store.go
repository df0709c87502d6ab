package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// BadgerStore хранит записи чанков в BadgerDB
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает (или создаёт) хранилище в каталоге dataPath/world
func NewBadgerStore(dataPath string) (*BadgerStore, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (bs *BadgerStore) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if !bs.isReady {
		return nil
	}

	bs.isReady = false
	return bs.db.Close()
}

// SaveChunk сохраняет запись чанка
func (bs *BadgerStore) SaveChunk(ctx context.Context, snap *world.ChunkSnapshot) error {
	data, err := EncodeChunk(snap)
	if err != nil {
		return err
	}
	if err := bs.set(ctx, chunkKey(snap.Coords), data); err != nil {
		return fmt.Errorf("ошибка сохранения чанка %v в BadgerDB: %w", snap.Coords, err)
	}
	return nil
}

// LoadChunk загружает запись чанка
func (bs *BadgerStore) LoadChunk(ctx context.Context, coords vec.Vec2) (*world.ChunkSnapshot, error) {
	data, err := bs.get(ctx, chunkKey(coords))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения чанка %v из BadgerDB: %w", coords, err)
	}
	return DecodeChunk(data)
}

// DeleteChunk удаляет запись чанка; отсутствие записи не ошибка
func (bs *BadgerStore) DeleteChunk(ctx context.Context, coords vec.Vec2) error {
	if err := bs.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(chunkKey(coords)))
	}); err != nil {
		return fmt.Errorf("ошибка удаления чанка %v из BadgerDB: %w", coords, err)
	}
	return nil
}

// SaveMeta сохраняет метаданные мира
func (bs *BadgerStore) SaveMeta(ctx context.Context, meta *world.WorldMeta) error {
	data, err := EncodeMeta(meta)
	if err != nil {
		return err
	}
	return bs.set(ctx, metaKey, data)
}

// LoadMeta загружает метаданные мира
func (bs *BadgerStore) LoadMeta(ctx context.Context) (*world.WorldMeta, error) {
	data, err := bs.get(ctx, metaKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMetaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных из BadgerDB: %w", err)
	}
	return DecodeMeta(data)
}

func (bs *BadgerStore) set(ctx context.Context, key string, data []byte) error {
	return bs.update(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (bs *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return bs.db.Update(fn)
}

func (bs *BadgerStore) get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	if !bs.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	return data, err
}
