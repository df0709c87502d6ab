package world

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/vec"
)

// TickReport итог одного шага стриминга чанков
type TickReport struct {
	Player    vec.Vec2 `json:"player"`
	Center    vec.Vec2 `json:"center_chunk"`
	Loaded    int      `json:"loaded"`    // Чанков, загруженных или сгенерированных на этом шаге
	Evicted   int      `json:"evicted"`   // Чанков, выгруженных из памяти
	Persisted int      `json:"persisted"` // Из них сохранено перед выгрузкой
	Deferred  int      `json:"deferred"`  // Выгрузка отложена: чанк занят или его некуда сохранить
	Resident  int      `json:"resident"`
}

// Tick подгружает чанки в радиусе загрузки вокруг игрока и выгружает
// чанки дальше радиуса выгрузки, предварительно сохраняя изменённые.
func (wm *WorldManager) Tick(ctx context.Context, player vec.Vec2) (TickReport, error) {
	if !player.InRange() {
		return TickReport{}, fmt.Errorf("%w: %v", ErrOutOfRange, player)
	}

	center := player.ToChunkCoords(wm.side)
	report := TickReport{Player: player, Center: center}

	wm.mu.Lock()
	if wm.closed {
		wm.mu.Unlock()
		return report, ErrClosed
	}
	p := player
	wm.player = &p
	wm.mu.Unlock()

	loaded, err := wm.preload(ctx, center)
	report.Loaded = loaded
	if err != nil {
		return report, err
	}

	if err := wm.evictFar(ctx, center, &report); err != nil {
		return report, err
	}

	wm.mu.RLock()
	report.Resident = len(wm.chunks)
	wm.mu.RUnlock()
	wm.metrics.resident(report.Resident)

	wm.logger.Debug("Тик %v: +%d -%d (сохранено %d, отложено %d), в памяти %d",
		center, report.Loaded, report.Evicted, report.Persisted, report.Deferred, report.Resident)
	return report, nil
}

// preload загружает недостающие чанки квадрата радиуса load_radius пулом воркеров
func (wm *WorldManager) preload(ctx context.Context, center vec.Vec2) (int, error) {
	r := wm.cfg.Streaming.LoadRadius

	var missing []vec.Vec2
	wm.mu.RLock()
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			coords := vec.Vec2{X: center.X + dx, Y: center.Y + dy}
			if !coords.ChunkInRange(wm.side) {
				continue
			}
			if _, ok := wm.chunks[coords]; !ok {
				missing = append(missing, coords)
			}
		}
	}
	wm.mu.RUnlock()

	// Ближние чанки первыми
	sort.Slice(missing, func(i, j int) bool {
		return missing[i].ChebyshevDistance(center) < missing[j].ChebyshevDistance(center)
	})

	var loaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wm.cfg.Streaming.Workers)
	for _, coords := range missing {
		coords := coords
		g.Go(func() error {
			if _, err := wm.ensureChunk(gctx, coords); err != nil {
				return err
			}
			loaded.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(loaded.Load()), err
}

// evictFar выгружает чанки дальше unload_radius. Чанк убирается из карты
// только после успешного сохранения и только если не менялся во время записи.
func (wm *WorldManager) evictFar(ctx context.Context, center vec.Vec2, report *TickReport) error {
	r := wm.cfg.Streaming.UnloadRadius

	var candidates []*Chunk
	wm.mu.RLock()
	for coords, c := range wm.chunks {
		if coords.ChebyshevDistance(center) > r {
			candidates = append(candidates, c)
		}
	}
	for coords := range wm.inflight {
		if coords.ChebyshevDistance(center) > r {
			report.Deferred++
		}
	}
	wm.mu.RUnlock()

	for _, c := range candidates {
		persisted := false
		if c.IsDirty() {
			if wm.store == nil {
				report.Deferred++
				continue
			}
			ok, err := wm.persist(ctx, c)
			if err != nil {
				return fmt.Errorf("сохранение чанка %v перед выгрузкой: %w", c.Coords, err)
			}
			if !ok {
				report.Deferred++
				continue
			}
			persisted = true
		}

		wm.mu.Lock()
		removed := false
		if wm.chunks[c.Coords] == c && !c.IsDirty() {
			delete(wm.chunks, c.Coords)
			removed = true
		}
		wm.mu.Unlock()

		if !removed {
			report.Deferred++
			continue
		}

		report.Evicted++
		if persisted {
			report.Persisted++
		}
		wm.metrics.evicted()
		wm.publish(ctx, eventbus.TypeChunkEvicted, eventbus.PriorityLow, eventbus.ChunkEvicted{
			Coords:    c.Coords,
			Persisted: persisted,
		})
	}
	return nil
}

// persist сохраняет снимок чанка. Возвращает false, если чанк изменился во время записи.
func (wm *WorldManager) persist(ctx context.Context, c *Chunk) (bool, error) {
	snap, version := c.Snapshot()
	if err := wm.store.SaveChunk(ctx, snap); err != nil {
		return false, err
	}
	wm.metrics.persisted()
	return c.MarkClean(version), nil
}

// Save сохраняет все изменённые чанки и возвращает их количество
func (wm *WorldManager) Save(ctx context.Context) (int, error) {
	if wm.store == nil {
		return 0, nil
	}

	wm.saveMu.Lock()
	defer wm.saveMu.Unlock()

	var dirty []*Chunk
	wm.mu.RLock()
	for _, c := range wm.chunks {
		if c.IsDirty() {
			dirty = append(dirty, c)
		}
	}
	wm.mu.RUnlock()

	saved := 0
	for _, c := range dirty {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if _, err := wm.persist(ctx, c); err != nil {
			return saved, fmt.Errorf("сохранение чанка %v: %w", c.Coords, err)
		}
		saved++
	}

	if saved > 0 {
		wm.logger.Info("Сохранено чанков: %d", saved)
	}
	return saved, nil
}

// Run выполняет автосохранение с интервалом autosave_interval до отмены ctx.
// Нулевой интервал отключает автосохранение.
func (wm *WorldManager) Run(ctx context.Context) error {
	interval := wm.cfg.Streaming.AutosaveInterval
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := wm.Save(ctx); err != nil {
				wm.logger.Error("Ошибка автосохранения: %v", err)
			}
		}
	}
}

// Close сохраняет изменения и запрещает дальнейшую загрузку чанков.
// Хранилище и шина событий остаются во владении вызывающего.
func (wm *WorldManager) Close(ctx context.Context) error {
	wm.mu.Lock()
	if wm.closed {
		wm.mu.Unlock()
		return nil
	}
	wm.closed = true
	wm.mu.Unlock()

	saved, err := wm.Save(ctx)
	if err != nil {
		return err
	}
	wm.logger.Info("Мир %s закрыт, сохранено чанков: %d", wm.meta.WorldID, saved)
	return nil
}
