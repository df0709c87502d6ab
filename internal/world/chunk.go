package world

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// Chunk представляет участок мира side×side блоков.
// Сетка хранится построчно: индекс ly*side + lx.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка в мире

	side      int
	blocks    []block.Type
	overrides []uint64 // Битовая карта клеток, изменённых игроком
	dirty     bool
	version   uint64 // Счётчик изменений, растёт при каждой записи

	mu sync.RWMutex
}

// ChunkSnapshot неизменяемая копия состояния чанка для сохранения и API
type ChunkSnapshot struct {
	Coords    vec.Vec2     `json:"coords"`
	Side      int          `json:"side"`
	Blocks    []block.Type `json:"blocks"`
	Overrides []uint64     `json:"overrides"`
}

// NewChunk создаёт чистый чанк поверх сгенерированной сетки
func NewChunk(coords vec.Vec2, side int, blocks []block.Type) *Chunk {
	return &Chunk{
		Coords:    coords,
		side:      side,
		blocks:    blocks,
		overrides: make([]uint64, bitmapWords(side)),
	}
}

// RestoreChunk восстанавливает чанк из сохранённого снимка, проверяя его целостность
func RestoreChunk(snap *ChunkSnapshot, side int) (*Chunk, error) {
	if snap.Side != side {
		return nil, fmt.Errorf("%w: сторона %d, ожидалась %d", ErrCorruptChunk, snap.Side, side)
	}
	if len(snap.Blocks) != side*side {
		return nil, fmt.Errorf("%w: %d блоков, ожидалось %d", ErrCorruptChunk, len(snap.Blocks), side*side)
	}
	if len(snap.Overrides) != bitmapWords(side) {
		return nil, fmt.Errorf("%w: битовая карта из %d слов", ErrCorruptChunk, len(snap.Overrides))
	}
	for i, t := range snap.Blocks {
		if !block.IsValid(t) {
			return nil, fmt.Errorf("%w: неизвестный тип %d в клетке %d", ErrCorruptChunk, t, i)
		}
	}

	c := &Chunk{
		Coords:    snap.Coords,
		side:      side,
		blocks:    make([]block.Type, len(snap.Blocks)),
		overrides: make([]uint64, len(snap.Overrides)),
	}
	copy(c.blocks, snap.Blocks)
	copy(c.overrides, snap.Overrides)
	return c, nil
}

func bitmapWords(side int) int {
	return (side*side + 63) / 64
}

// Side возвращает сторону чанка
func (c *Chunk) Side() int { return c.side }

func (c *Chunk) index(local vec.Vec2) int {
	return local.Y*c.side + local.X
}

// GetBlock возвращает тип блока по локальным координатам
func (c *Chunk) GetBlock(local vec.Vec2) block.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[c.index(local)]
}

// SetBlock записывает блок, помечая клетку изменённой, а чанк грязным.
// Возвращает предыдущий тип.
func (c *Chunk) SetBlock(local vec.Vec2, t block.Type) block.Type {
	prev, _, _ := c.Apply(local, func(block.Type) (block.Type, error) { return t, nil })
	return prev
}

// Apply атомарно вычисляет новое значение клетки из текущего.
// Если fn вернула ошибку, чанк не меняется.
func (c *Chunk) Apply(local vec.Vec2, fn func(cur block.Type) (block.Type, error)) (prev, next block.Type, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(local)
	prev = c.blocks[i]
	next, err = fn(prev)
	if err != nil {
		return prev, prev, err
	}

	c.blocks[i] = next
	c.overrides[i/64] |= 1 << (uint(i) % 64)
	c.dirty = true
	c.version++
	return prev, next, nil
}

// IsOverridden сообщает, менял ли игрок клетку
func (c *Chunk) IsOverridden(local vec.Vec2) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.index(local)
	return c.overrides[i/64]&(1<<(uint(i)%64)) != 0
}

// OverrideCount возвращает количество изменённых клеток
func (c *Chunk) OverrideCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, w := range c.overrides {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsDirty возвращает true, если в чанке есть несохранённые изменения
func (c *Chunk) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.dirty
}

// Snapshot копирует состояние чанка и возвращает версию, к которой оно относится
func (c *Chunk) Snapshot() (*ChunkSnapshot, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &ChunkSnapshot{
		Coords:    c.Coords,
		Side:      c.side,
		Blocks:    make([]block.Type, len(c.blocks)),
		Overrides: make([]uint64, len(c.overrides)),
	}
	copy(snap.Blocks, c.blocks)
	copy(snap.Overrides, c.overrides)
	return snap, c.version
}

// MarkClean снимает флаг изменений, если с момента снимка version чанк не менялся
func (c *Chunk) MarkClean(version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version != version {
		return false
	}
	c.dirty = false
	return true
}
