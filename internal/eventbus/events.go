package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// Типы событий мира
const (
	TypeChunkLoaded  = "chunk.loaded"
	TypeChunkEvicted = "chunk.evicted"
	TypeBlockChanged = "block.changed"
)

// Приоритеты событий
const (
	PriorityLow    = 1
	PriorityNormal = 3
	PriorityHigh   = 5
)

// ErrBusClosed возвращается при публикации в закрытую шину
var ErrBusClosed = errors.New("шина событий закрыта")

// ChunkOrigin откуда взят загруженный чанк
type ChunkOrigin string

const (
	OriginGenerated ChunkOrigin = "generated"
	OriginStore     ChunkOrigin = "store"
	OriginRecovered ChunkOrigin = "recovered"
)

// ChunkLoaded полезная нагрузка события chunk.loaded
type ChunkLoaded struct {
	Coords vec.Vec2    `json:"coords"`
	Origin ChunkOrigin `json:"origin"`
}

// ChunkEvicted полезная нагрузка события chunk.evicted
type ChunkEvicted struct {
	Coords    vec.Vec2 `json:"coords"`
	Persisted bool     `json:"persisted"`
}

// BlockChanged полезная нагрузка события block.changed
type BlockChanged struct {
	Pos      vec.Vec2   `json:"pos"`
	Previous block.Type `json:"previous"`
	Current  block.Type `json:"current"`
	Intent   string     `json:"intent"`
}

// NewEnvelope упаковывает полезную нагрузку в конверт с новым UUID
func NewEnvelope(source, eventType string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация события %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode распаковывает полезную нагрузку конверта в out
func (e *Envelope) Decode(out interface{}) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("разбор события %s: %w", e.EventType, err)
	}
	return nil
}
