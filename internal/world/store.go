package world

import (
	"context"
	"time"

	"github.com/annel0/blockworld/internal/vec"
)

// WorldMeta метаданные мира, сохраняемые при первом открытии хранилища
type WorldMeta struct {
	WorldID   string    `json:"world_id"`
	Seed      int64     `json:"seed"`
	ChunkSize int       `json:"chunk_size"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkStore хранилище изменённых чанков.
// LoadChunk возвращает ErrChunkNotFound для отсутствующей записи и
// ошибку, обёрнутую в ErrCorruptChunk, для повреждённой.
type ChunkStore interface {
	LoadChunk(ctx context.Context, coords vec.Vec2) (*ChunkSnapshot, error)
	SaveChunk(ctx context.Context, snap *ChunkSnapshot) error
	DeleteChunk(ctx context.Context, coords vec.Vec2) error
	LoadMeta(ctx context.Context) (*WorldMeta, error)
	SaveMeta(ctx context.Context, meta *WorldMeta) error
	Close() error
}
