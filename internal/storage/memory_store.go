package storage

import (
	"context"
	"sync"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// MemoryStore хранит закодированные записи чанков в памяти.
// Используется в тестах и для временных миров.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[vec.Vec2][]byte
	meta   []byte
}

// NewMemoryStore создает хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks: make(map[vec.Vec2][]byte),
	}
}

// SaveChunk кодирует и сохраняет запись чанка.
// Запись проходит тот же кодек, что и в дисковых хранилищах.
func (s *MemoryStore) SaveChunk(ctx context.Context, snap *world.ChunkSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeChunk(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks[snap.Coords] = data
	return nil
}

// LoadChunk загружает запись чанка
func (s *MemoryStore) LoadChunk(ctx context.Context, coords vec.Vec2) (*world.ChunkSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.chunks[coords]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return DecodeChunk(data)
}

// DeleteChunk удаляет запись чанка
func (s *MemoryStore) DeleteChunk(ctx context.Context, coords vec.Vec2) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chunks, coords)
	return nil
}

// SaveMeta сохраняет метаданные мира
func (s *MemoryStore) SaveMeta(ctx context.Context, meta *world.WorldMeta) error {
	data, err := EncodeMeta(meta)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = data
	return nil
}

// LoadMeta загружает метаданные мира
func (s *MemoryStore) LoadMeta(ctx context.Context) (*world.WorldMeta, error) {
	s.mu.RLock()
	data := s.meta
	s.mu.RUnlock()

	if data == nil {
		return nil, ErrMetaNotFound
	}
	return DecodeMeta(data)
}

// Close ничего не делает
func (s *MemoryStore) Close() error { return nil }

// Len возвращает количество сохранённых чанков
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.chunks)
}

// PutRaw кладёт запись чанка без кодирования; нужен для проверки восстановления повреждённых данных
func (s *MemoryStore) PutRaw(coords vec.Vec2, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks[coords] = append([]byte(nil), data...)
}
