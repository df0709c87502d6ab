package storage_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

const (
	chunkFileExt = ".bwc"
	metaFileName = "meta.json"
)

// FileStore хранит каждый чанк в отдельном файле каталога basePath.
// Запись атомарна: данные пишутся во временный файл и переименовываются.
type FileStore struct {
	basePath string
	mu       sync.RWMutex // Сериализует запись и удаление одного каталога
}

// NewFileStore создаёт файловое хранилище
func NewFileStore(basePath string) (*FileStore, error) {
	// Создаём директорию если её нет
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

// SaveChunk сохраняет запись чанка
func (s *FileStore) SaveChunk(ctx context.Context, snap *world.ChunkSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := storage.EncodeChunk(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeFileAtomic(s.chunkFilename(snap.Coords), data)
}

// LoadChunk загружает запись чанка
func (s *FileStore) LoadChunk(ctx context.Context, coords vec.Vec2) (*world.ChunkSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.chunkFilename(coords))
	s.mu.RUnlock()

	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения чанка %v: %w", coords, err)
	}
	return storage.DecodeChunk(data)
}

// DeleteChunk удаляет файл чанка; отсутствие файла не ошибка
func (s *FileStore) DeleteChunk(ctx context.Context, coords vec.Vec2) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.chunkFilename(coords)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления чанка %v: %w", coords, err)
	}
	return nil
}

// SaveMeta сохраняет метаданные мира
func (s *FileStore) SaveMeta(ctx context.Context, meta *world.WorldMeta) error {
	data, err := storage.EncodeMeta(meta)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeFileAtomic(filepath.Join(s.basePath, metaFileName), data)
}

// LoadMeta загружает метаданные мира
func (s *FileStore) LoadMeta(ctx context.Context) (*world.WorldMeta, error) {
	s.mu.RLock()
	data, err := os.ReadFile(filepath.Join(s.basePath, metaFileName))
	s.mu.RUnlock()

	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrMetaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных: %w", err)
	}
	return storage.DecodeMeta(data)
}

// Close ничего не делает: файлы не держатся открытыми
func (s *FileStore) Close() error { return nil }

// GetStorageStats возвращает статистику хранилища
func (s *FileStore) GetStorageStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Подсчитываем файлы в директории
	var fileCount int
	var totalBytes int64
	_ = filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && filepath.Ext(path) == chunkFileExt {
			fileCount++
			if info, ierr := d.Info(); ierr == nil {
				totalBytes += info.Size()
			}
		}
		return nil
	})

	return map[string]interface{}{
		"stored_chunks": fileCount,
		"stored_bytes":  totalBytes,
		"base_path":     s.basePath,
	}
}

// chunkFilename возвращает имя файла для чанка
func (s *FileStore) chunkFilename(coords vec.Vec2) string {
	return filepath.Join(s.basePath, fmt.Sprintf("chunk_%d_%d%s", coords.X, coords.Y, chunkFileExt))
}

// writeFileAtomic пишет файл через временный файл в том же каталоге
func writeFileAtomic(filename string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи файла %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи файла %s: %w", filename, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи файла %s: %w", filename, err)
	}
	return nil
}
