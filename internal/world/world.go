package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/terrain"
)

// eventSource имя источника в конвертах событий мира
const eventSource = "world"

// Intent действие игрока над блоком
type Intent uint8

const (
	IntentMine Intent = iota + 1
	IntentPlace
)

func (i Intent) String() string {
	switch i {
	case IntentMine:
		return "mine"
	case IntentPlace:
		return "place"
	default:
		return "unknown"
	}
}

// ChunkState состояние чанка в менеджере
type ChunkState uint8

const (
	ChunkUnloaded ChunkState = iota
	ChunkGenerating
	ChunkLoadedClean
	ChunkLoadedDirty
)

func (s ChunkState) String() string {
	switch s {
	case ChunkGenerating:
		return "generating"
	case ChunkLoadedClean:
		return "loaded_clean"
	case ChunkLoadedDirty:
		return "loaded_dirty"
	default:
		return "unloaded"
	}
}

// Option настраивает WorldManager
type Option func(*WorldManager)

// WithStore подключает хранилище изменённых чанков.
// Без хранилища изменённые чанки не выгружаются из памяти.
func WithStore(store ChunkStore) Option {
	return func(wm *WorldManager) { wm.store = store }
}

// WithEventBus подключает шину событий мира
func WithEventBus(bus eventbus.EventBus) Option {
	return func(wm *WorldManager) { wm.bus = bus }
}

// WithMetrics подключает Prometheus-метрики
func WithMetrics(m *Metrics) Option {
	return func(wm *WorldManager) { wm.metrics = m }
}

// WithLogger заменяет логгер компонента world
func WithLogger(l *logging.Logger) Option {
	return func(wm *WorldManager) { wm.logger = l }
}

// WorldManager владеет сидом мира и разреженной картой загруженных чанков
type WorldManager struct {
	cfg       config.WorldConfig
	side      int
	generator *terrain.Generator
	meta      WorldMeta

	store   ChunkStore
	bus     eventbus.EventBus
	metrics *Metrics
	logger  *logging.Logger
	tracer  trace.Tracer

	mu       sync.RWMutex
	chunks   map[vec.Vec2]*Chunk
	inflight map[vec.Vec2]struct{} // Чанки, которые сейчас загружаются или генерируются
	player   *vec.Vec2
	closed   bool

	flights   singleflight.Group
	saveMu    sync.Mutex
	generated atomic.Uint64
}

// NewWorldManager создаёт менеджер мира. Некорректная конфигурация или
// хранилище другого мира возвращают *config.ConfigurationError.
func NewWorldManager(cfg config.WorldConfig, opts ...Option) (*WorldManager, error) {
	gen, err := terrain.NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	wm := &WorldManager{
		cfg:       cfg,
		side:      cfg.ChunkSize,
		generator: gen,
		tracer:    otel.Tracer("github.com/annel0/blockworld/internal/world"),
		chunks:    make(map[vec.Vec2]*Chunk),
		inflight:  make(map[vec.Vec2]struct{}),
	}
	for _, opt := range opts {
		opt(wm)
	}
	if wm.logger == nil {
		wm.logger = logging.GetWorldLogger()
	}

	if err := wm.openMeta(context.Background()); err != nil {
		return nil, err
	}

	wm.logger.Info("Мир %s открыт: seed=%d, chunk=%d", wm.meta.WorldID, cfg.Seed, wm.side)
	return wm, nil
}

// openMeta сверяет метаданные хранилища с конфигурацией или записывает их впервые
func (wm *WorldManager) openMeta(ctx context.Context) error {
	fresh := WorldMeta{
		WorldID:   uuid.NewString(),
		Seed:      wm.cfg.Seed,
		ChunkSize: wm.side,
		CreatedAt: time.Now().UTC(),
	}
	if wm.store == nil {
		wm.meta = fresh
		return nil
	}

	stored, err := wm.store.LoadMeta(ctx)
	switch {
	case errors.Is(err, ErrMetaNotFound):
		if err := wm.store.SaveMeta(ctx, &fresh); err != nil {
			return fmt.Errorf("сохранение метаданных мира: %w", err)
		}
		wm.meta = fresh
		return nil
	case err != nil:
		return fmt.Errorf("загрузка метаданных мира: %w", err)
	}

	if stored.Seed != wm.cfg.Seed {
		return &config.ConfigurationError{
			Field:  "world.seed",
			Reason: fmt.Sprintf("хранилище принадлежит миру с сидом %d, в конфигурации %d", stored.Seed, wm.cfg.Seed),
		}
	}
	if stored.ChunkSize != wm.side {
		return &config.ConfigurationError{
			Field:  "world.chunk_size",
			Reason: fmt.Sprintf("хранилище создано с чанком %d, в конфигурации %d", stored.ChunkSize, wm.side),
		}
	}
	wm.meta = *stored
	return nil
}

// Meta возвращает метаданные мира
func (wm *WorldManager) Meta() WorldMeta { return wm.meta }

// Seed возвращает сид мира
func (wm *WorldManager) Seed() int64 { return wm.cfg.Seed }

// ChunkSize возвращает сторону чанка
func (wm *WorldManager) ChunkSize() int { return wm.side }

// Generator возвращает генератор ландшафта
func (wm *WorldManager) Generator() *terrain.Generator { return wm.generator }

// GetBlock возвращает тип блока, при необходимости загружая или генерируя чанк
func (wm *WorldManager) GetBlock(ctx context.Context, pos vec.Vec2) (block.Type, error) {
	if !pos.InRange() {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, pos)
	}

	c, err := wm.ensureChunk(ctx, pos.ToChunkCoords(wm.side))
	if err != nil {
		return 0, err
	}
	return c.GetBlock(pos.LocalInChunk(wm.side)), nil
}

// SetBlock применяет действие игрока к блоку и возвращает итоговый тип.
// IntentMine требует добываемый блок и записывает его тип распада,
// IntentPlace записывает t.
func (wm *WorldManager) SetBlock(ctx context.Context, pos vec.Vec2, t block.Type, intent Intent) (block.Type, error) {
	if !pos.InRange() {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, pos)
	}

	var apply func(cur block.Type) (block.Type, error)
	switch intent {
	case IntentMine:
		apply = func(cur block.Type) (block.Type, error) {
			next, ok := block.Decay(cur)
			if !ok {
				return cur, fmt.Errorf("%w: %s в %v", ErrNotMinable, cur, pos)
			}
			return next, nil
		}
	case IntentPlace:
		if !block.IsValid(t) {
			return 0, fmt.Errorf("%w: %d", ErrUnknownBlock, t)
		}
		apply = func(block.Type) (block.Type, error) { return t, nil }
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownIntent, intent)
	}

	coords := pos.ToChunkCoords(wm.side)
	local := pos.LocalInChunk(wm.side)

	for {
		c, err := wm.ensureChunk(ctx, coords)
		if err != nil {
			return 0, err
		}

		// Запись под блокировкой карты: выгрузка не может убрать чанк между проверкой и записью
		wm.mu.RLock()
		if wm.chunks[coords] != c {
			wm.mu.RUnlock()
			continue
		}
		prev, next, err := c.Apply(local, apply)
		wm.mu.RUnlock()
		if err != nil {
			return prev, err
		}

		wm.metrics.blockChanged(intent)
		wm.publish(ctx, eventbus.TypeBlockChanged, eventbus.PriorityNormal, eventbus.BlockChanged{
			Pos:      pos,
			Previous: prev,
			Current:  next,
			Intent:   intent.String(),
		})
		return next, nil
	}
}

// Chunk возвращает снимок чанка, загружая его при необходимости
func (wm *WorldManager) Chunk(ctx context.Context, coords vec.Vec2) (*ChunkSnapshot, error) {
	if !coords.ChunkInRange(wm.side) {
		return nil, fmt.Errorf("%w: чанк %v", ErrOutOfRange, coords)
	}
	c, err := wm.ensureChunk(ctx, coords)
	if err != nil {
		return nil, err
	}
	snap, _ := c.Snapshot()
	return snap, nil
}

// ChunkState возвращает текущее состояние чанка
func (wm *WorldManager) ChunkState(coords vec.Vec2) ChunkState {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	if c, ok := wm.chunks[coords]; ok {
		if c.IsDirty() {
			return ChunkLoadedDirty
		}
		return ChunkLoadedClean
	}
	if _, ok := wm.inflight[coords]; ok {
		return ChunkGenerating
	}
	return ChunkUnloaded
}

// ensureChunk возвращает загруженный чанк. Одновременные запросы одного
// чанка объединяются: генерация выполняется ровно один раз.
func (wm *WorldManager) ensureChunk(ctx context.Context, coords vec.Vec2) (*Chunk, error) {
	wm.mu.RLock()
	c, ok := wm.chunks[coords]
	closed := wm.closed
	wm.mu.RUnlock()
	if ok {
		return c, nil
	}
	if closed {
		return nil, ErrClosed
	}

	key := fmt.Sprintf("%d:%d", coords.X, coords.Y)
	ch := wm.flights.DoChan(key, func() (interface{}, error) {
		return wm.materialize(context.WithoutCancel(ctx), coords)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Chunk), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// materialize загружает чанк из хранилища или генерирует его и публикует в карту целиком
func (wm *WorldManager) materialize(ctx context.Context, coords vec.Vec2) (*Chunk, error) {
	wm.mu.Lock()
	if c, ok := wm.chunks[coords]; ok {
		wm.mu.Unlock()
		return c, nil
	}
	wm.inflight[coords] = struct{}{}
	wm.mu.Unlock()

	c, origin, err := wm.loadOrGenerate(ctx, coords)

	wm.mu.Lock()
	delete(wm.inflight, coords)
	if err == nil {
		wm.chunks[coords] = c
	}
	resident := len(wm.chunks)
	wm.mu.Unlock()

	if err != nil {
		return nil, err
	}

	wm.metrics.resident(resident)
	wm.publish(ctx, eventbus.TypeChunkLoaded, eventbus.PriorityLow, eventbus.ChunkLoaded{
		Coords: coords,
		Origin: origin,
	})
	return c, nil
}

func (wm *WorldManager) loadOrGenerate(ctx context.Context, coords vec.Vec2) (*Chunk, eventbus.ChunkOrigin, error) {
	ctx, span := wm.tracer.Start(ctx, "world.loadChunk", trace.WithAttributes(
		attribute.Int("chunk.x", coords.X),
		attribute.Int("chunk.y", coords.Y),
	))
	defer span.End()

	origin := eventbus.OriginGenerated

	if wm.store != nil {
		c, err := wm.loadStored(ctx, coords)
		switch {
		case err == nil:
			wm.metrics.loaded()
			span.SetAttributes(attribute.String("chunk.origin", string(eventbus.OriginStore)))
			return c, eventbus.OriginStore, nil
		case errors.Is(err, ErrChunkNotFound):
		case errors.Is(err, ErrCorruptChunk):
			wm.logger.Warn("Чанк %v повреждён, перегенерирую из сида: %v", coords, err)
			if derr := wm.store.DeleteChunk(ctx, coords); derr != nil {
				wm.logger.Error("Не удалось удалить повреждённую запись чанка %v: %v", coords, derr)
			}
			wm.metrics.recovered()
			origin = eventbus.OriginRecovered
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "загрузка чанка")
			return nil, "", fmt.Errorf("загрузка чанка %v: %w", coords, err)
		}
	}

	start := time.Now()
	c := NewChunk(coords, wm.side, wm.generator.GenerateGrid(coords))
	wm.metrics.generated(time.Since(start))
	wm.generated.Add(1)

	span.SetAttributes(attribute.String("chunk.origin", string(origin)))
	wm.logger.Trace("Чанк %v сгенерирован за %v", coords, time.Since(start))
	return c, origin, nil
}

func (wm *WorldManager) loadStored(ctx context.Context, coords vec.Vec2) (*Chunk, error) {
	snap, err := wm.store.LoadChunk(ctx, coords)
	if err != nil {
		return nil, err
	}
	if snap.Coords != coords {
		return nil, fmt.Errorf("%w: запись чанка %v лежит под ключом %v", ErrCorruptChunk, snap.Coords, coords)
	}
	return RestoreChunk(snap, wm.side)
}

func (wm *WorldManager) publish(ctx context.Context, eventType string, priority int, payload interface{}) {
	if wm.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(eventSource, eventType, priority, payload)
	if err == nil {
		ev.Metadata = map[string]string{"world_id": wm.meta.WorldID}
		err = wm.bus.Publish(ctx, ev)
	}
	if err != nil {
		wm.logger.Warn("Событие %s не опубликовано: %v", eventType, err)
	}
}

// WorldStats сводка состояния мира
type WorldStats struct {
	WorldID    string    `json:"world_id"`
	Seed       int64     `json:"seed"`
	ChunkSize  int       `json:"chunk_size"`
	Resident   int       `json:"resident_chunks"`
	Dirty      int       `json:"dirty_chunks"`
	InFlight   int       `json:"inflight_chunks"`
	Generated  uint64    `json:"generated_chunks"`
	Player     *vec.Vec2 `json:"player,omitempty"`
	Persistent bool      `json:"persistent"`
}

// Stats возвращает сводку состояния мира
func (wm *WorldManager) Stats() WorldStats {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	s := WorldStats{
		WorldID:    wm.meta.WorldID,
		Seed:       wm.cfg.Seed,
		ChunkSize:  wm.side,
		Resident:   len(wm.chunks),
		InFlight:   len(wm.inflight),
		Generated:  wm.generated.Load(),
		Persistent: wm.store != nil,
	}
	for _, c := range wm.chunks {
		if c.IsDirty() {
			s.Dirty++
		}
	}
	if wm.player != nil {
		p := *wm.player
		s.Player = &p
	}
	return s
}
