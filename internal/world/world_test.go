package world_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/terrain"
)

func testConfig() config.WorldConfig {
	cfg := config.DefaultWorld()
	cfg.Streaming.Workers = 4
	cfg.Streaming.LoadRadius = 1
	cfg.Streaming.UnloadRadius = 2
	return cfg
}

// coalWorldConfig настраивает мир, где весь ландшафт камень, а каждый камень уголь
func coalWorldConfig() config.WorldConfig {
	cfg := testConfig()
	cfg.Terrain.StretchMin = 0
	cfg.Terrain.StretchMax = 1
	cfg.Terrain.Thresholds = config.Thresholds{Water: 0.01, Sand: 0.02, Grass: 0.03, Stone: 0.99}
	cfg.Resources.Coal = 1
	return cfg
}

func newWorld(t *testing.T, cfg config.WorldConfig, opts ...world.Option) *world.WorldManager {
	t.Helper()
	wm, err := world.NewWorldManager(cfg, opts...)
	require.NoError(t, err)
	return wm
}

func TestGetBlockMatchesGenerator(t *testing.T) {
	ctx := context.Background()
	wm := newWorld(t, testConfig())

	gen, err := terrain.NewGenerator(testConfig())
	require.NoError(t, err)

	for _, p := range []vec.Vec2{{X: 0, Y: 0}, {X: -1, Y: -1}, {X: 15, Y: 16}, {X: -17, Y: 33}, {X: 1000, Y: -2000}} {
		got, err := wm.GetBlock(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, gen.BlockAt(p.X, p.Y), got, "блок %v", p)
	}
}

func TestGetBlockRejectsOutOfRange(t *testing.T) {
	wm := newWorld(t, testConfig())

	_, err := wm.GetBlock(context.Background(), vec.Vec2{X: vec.MaxCoord + 1})
	assert.ErrorIs(t, err, world.ErrOutOfRange)

	_, err = wm.SetBlock(context.Background(), vec.Vec2{Y: -vec.MaxCoord - 1}, block.Stone, world.IntentPlace)
	assert.ErrorIs(t, err, world.ErrOutOfRange)

	_, err = wm.Tick(context.Background(), vec.Vec2{X: vec.MaxCoord * 2})
	assert.ErrorIs(t, err, world.ErrOutOfRange)
}

func TestChunkRejectsHugeAndEdgeCoordinates(t *testing.T) {
	ctx := context.Background()
	wm := newWorld(t, testConfig())
	limit := vec.MaxCoord / 16

	for _, coords := range []vec.Vec2{
		{X: 1 << 60},
		{Y: -(1 << 62)},
		{X: limit},
		{Y: -limit - 1},
	} {
		_, err := wm.Chunk(ctx, coords)
		assert.ErrorIs(t, err, world.ErrOutOfRange, "чанк %v", coords)
		assert.Equal(t, world.ChunkUnloaded, wm.ChunkState(coords), "чанк %v не должен попасть в память", coords)
	}

	snap, err := wm.Chunk(ctx, vec.Vec2{X: limit - 1, Y: -limit})
	require.NoError(t, err)
	assert.Equal(t, vec.Vec2{X: limit - 1, Y: -limit}, snap.Coords)
}

func TestConcurrentRequestsGenerateChunkOnce(t *testing.T) {
	ctx := context.Background()
	wm := newWorld(t, testConfig())

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Все координаты лежат в чанке (2, -3)
			_, err := wm.GetBlock(ctx, vec.Vec2{X: 32 + i%16, Y: -48 + i/16})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(1), wm.Stats().Generated, "чанк должен быть сгенерирован ровно один раз")
	assert.Equal(t, world.ChunkLoadedClean, wm.ChunkState(vec.Vec2{X: 2, Y: -3}))
}

func TestGenerationIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Seed = 42

	a, err := newWorld(t, cfg).Chunk(ctx, vec.Vec2{})
	require.NoError(t, err)
	b, err := newWorld(t, cfg).Chunk(ctx, vec.Vec2{})
	require.NoError(t, err)

	assert.Equal(t, a.Blocks, b.Blocks)
	assert.Len(t, a.Blocks, 16*16)
}

func TestMineDecaysAndPlaceValidates(t *testing.T) {
	ctx := context.Background()
	wm := newWorld(t, coalWorldConfig())
	pos := vec.Vec2{X: 3, Y: 5}

	got, err := wm.GetBlock(ctx, pos)
	require.NoError(t, err)
	require.Equal(t, block.Coal, got)

	next, err := wm.SetBlock(ctx, pos, 0, world.IntentMine)
	require.NoError(t, err)
	assert.Equal(t, block.Dirt, next)

	got, err = wm.GetBlock(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, block.Dirt, got, "после добычи виден тип распада")

	_, err = wm.SetBlock(ctx, pos, 0, world.IntentMine)
	assert.ErrorIs(t, err, world.ErrNotMinable, "земля не добывается")

	_, err = wm.SetBlock(ctx, pos, block.Type(200), world.IntentPlace)
	assert.ErrorIs(t, err, world.ErrUnknownBlock)

	_, err = wm.SetBlock(ctx, pos, block.Stone, world.Intent(9))
	assert.ErrorIs(t, err, world.ErrUnknownIntent)

	next, err = wm.SetBlock(ctx, pos, block.DeepStone, world.IntentPlace)
	require.NoError(t, err)
	assert.Equal(t, block.DeepStone, next)

	next, err = wm.SetBlock(ctx, pos, 0, world.IntentMine)
	require.NoError(t, err)
	assert.Equal(t, block.Stone, next, "глубинный камень распадается в камень")

	assert.Equal(t, world.ChunkLoadedDirty, wm.ChunkState(vec.Vec2{}))
}

// Сценарий: seed=42, чанк (0,0), добыча угля в (3,5), сохранение и перезагрузка
func TestMinedCoalSurvivesReload(t *testing.T) {
	ctx := context.Background()
	cfg := coalWorldConfig()
	cfg.Seed = 42
	store := storage.NewMemoryStore()

	first := newWorld(t, cfg, world.WithStore(store))
	original, err := first.Chunk(ctx, vec.Vec2{})
	require.NoError(t, err)
	require.Equal(t, block.Coal, original.Blocks[5*16+3])

	next, err := first.SetBlock(ctx, vec.Vec2{X: 3, Y: 5}, 0, world.IntentMine)
	require.NoError(t, err)
	require.Equal(t, block.Dirt, next)

	saved, err := first.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Equal(t, world.ChunkLoadedClean, first.ChunkState(vec.Vec2{}))

	second := newWorld(t, cfg, world.WithStore(store))
	reloaded, err := second.Chunk(ctx, vec.Vec2{})
	require.NoError(t, err)

	for i := range reloaded.Blocks {
		if i == 5*16+3 {
			assert.Equal(t, block.Dirt, reloaded.Blocks[i])
			continue
		}
		assert.Equal(t, original.Blocks[i], reloaded.Blocks[i], "клетка %d", i)
	}
	assert.Equal(t, uint64(0), second.Stats().Generated, "чанк загружен из хранилища, а не сгенерирован")
	assert.Equal(t, first.Meta().WorldID, second.Meta().WorldID)
}

func TestDefaultWorldEditSurvivesReload(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := storage.NewMemoryStore()

	first := newWorld(t, cfg, world.WithStore(store))
	original, err := first.Chunk(ctx, vec.Vec2{})
	require.NoError(t, err)

	// Ставим камень в первую клетку и добываем его
	pos := vec.Vec2{X: 7, Y: 9}
	_, err = first.SetBlock(ctx, pos, block.Stone, world.IntentPlace)
	require.NoError(t, err)
	_, err = first.SetBlock(ctx, pos, 0, world.IntentMine)
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second := newWorld(t, cfg, world.WithStore(store))
	reloaded, err := second.Chunk(ctx, vec.Vec2{})
	require.NoError(t, err)

	idx := pos.Y*16 + pos.X
	assert.Equal(t, block.Dirt, reloaded.Blocks[idx])
	for i := range reloaded.Blocks {
		if i != idx {
			assert.Equal(t, original.Blocks[i], reloaded.Blocks[i])
		}
	}
}

func TestTickLoadsAndEvictsWithHysteresis(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	wm := newWorld(t, testConfig(), world.WithStore(store))

	report, err := wm.Tick(ctx, vec.Vec2{X: 8, Y: 8})
	require.NoError(t, err)
	assert.Equal(t, 9, report.Loaded, "радиус 1 даёт квадрат 3×3")
	assert.Equal(t, 9, report.Resident)

	// Изменяем чанк (-1, 0), чтобы он ушёл в хранилище при выгрузке
	_, err = wm.SetBlock(ctx, vec.Vec2{X: -5, Y: 3}, block.Sand, world.IntentPlace)
	require.NoError(t, err)

	// Игрок в чанке (2, 0): чанки с x = 0 на расстоянии 2 остаются, x = -1 выгружаются
	report, err = wm.Tick(ctx, vec.Vec2{X: 2*16 + 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Evicted)
	assert.Equal(t, 1, report.Persisted)
	assert.Equal(t, world.ChunkLoadedClean, wm.ChunkState(vec.Vec2{X: 0, Y: 0}), "чанк вне радиуса загрузки, но внутри радиуса выгрузки остаётся")
	assert.Equal(t, world.ChunkUnloaded, wm.ChunkState(vec.Vec2{X: -1, Y: 0}))
	assert.Equal(t, 1, store.Len())

	// Возврат к изменённому чанку читает его из хранилища
	got, err := wm.GetBlock(ctx, vec.Vec2{X: -5, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, block.Sand, got)
}

func TestDirtyChunksStayResidentWithoutStore(t *testing.T) {
	ctx := context.Background()
	wm := newWorld(t, testConfig())

	_, err := wm.Tick(ctx, vec.Vec2{})
	require.NoError(t, err)
	_, err = wm.SetBlock(ctx, vec.Vec2{X: 1, Y: 1}, block.Stone, world.IntentPlace)
	require.NoError(t, err)

	report, err := wm.Tick(ctx, vec.Vec2{X: 100 * 16})
	require.NoError(t, err)
	assert.Equal(t, 8, report.Evicted)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, world.ChunkLoadedDirty, wm.ChunkState(vec.Vec2{}))
}

func TestCorruptChunkIsRegenerated(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := storage.NewMemoryStore()
	store.PutRaw(vec.Vec2{X: 1, Y: 1}, []byte("definitely not a chunk record"))

	var buf bytes.Buffer
	logger := logging.NewWriterLogger("world", &buf, logging.WARN)
	wm := newWorld(t, cfg, world.WithStore(store), world.WithLogger(logger))

	gen, err := terrain.NewGenerator(cfg)
	require.NoError(t, err)

	got, err := wm.GetBlock(ctx, vec.Vec2{X: 20, Y: 17})
	require.NoError(t, err)
	assert.Equal(t, gen.BlockAt(20, 17), got)
	assert.Equal(t, 0, store.Len(), "повреждённая запись удалена")
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Equal(t, uint64(1), wm.Stats().Generated)
}

func TestStoreOfAnotherWorldIsRejected(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := testConfig()
	newWorld(t, cfg, world.WithStore(store))

	other := cfg
	other.Seed = cfg.Seed + 1
	_, err := world.NewWorldManager(other, world.WithStore(store))
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "world.seed", cfgErr.Field)

	other = cfg
	other.ChunkSize = 32
	_, err = world.NewWorldManager(other, world.WithStore(store))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "world.chunk_size", cfgErr.Field)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Terrain.Thresholds.Grass = 0.2

	_, err := world.NewWorldManager(cfg)
	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBlockChangesArePublished(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.NewMemoryBus(64)

	var mu sync.Mutex
	var changes []eventbus.BlockChanged
	_, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.TypeBlockChanged}}, func(ctx context.Context, ev *eventbus.Envelope) {
		var p eventbus.BlockChanged
		if ev.Decode(&p) == nil {
			mu.Lock()
			changes = append(changes, p)
			mu.Unlock()
		}
	})
	require.NoError(t, err)

	wm := newWorld(t, coalWorldConfig(), world.WithEventBus(bus))
	_, err = wm.SetBlock(ctx, vec.Vec2{X: 3, Y: 5}, 0, world.IntentMine)
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 1)
	assert.Equal(t, block.Coal, changes[0].Previous)
	assert.Equal(t, block.Dirt, changes[0].Current)
	assert.Equal(t, "mine", changes[0].Intent)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Streaming.AutosaveInterval = 0
	wm := newWorld(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wm.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestClosedWorldRefusesNewChunks(t *testing.T) {
	ctx := context.Background()
	wm := newWorld(t, testConfig())
	_, err := wm.GetBlock(ctx, vec.Vec2{})
	require.NoError(t, err)
	require.NoError(t, wm.Close(ctx))

	_, err = wm.GetBlock(ctx, vec.Vec2{X: 1})
	assert.NoError(t, err, "загруженный чанк по-прежнему читается")

	_, err = wm.GetBlock(ctx, vec.Vec2{X: 500})
	assert.ErrorIs(t, err, world.ErrClosed)

	_, err = wm.Tick(ctx, vec.Vec2{})
	assert.ErrorIs(t, err, world.ErrClosed)
}
