package terrain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

func newTestGenerator(t *testing.T, seed int64) *Generator {
	t.Helper()
	cfg := config.DefaultWorld()
	cfg.Seed = seed
	cfg.Streaming.Workers = 1
	g, err := NewGenerator(cfg)
	require.NoError(t, err)
	return g
}

func TestElevationDeterministicAndBounded(t *testing.T) {
	a := newTestGenerator(t, 42).Classifier()
	b := newTestGenerator(t, 42).Classifier()

	for _, p := range []vec.Vec2{{X: 0, Y: 0}, {X: 17, Y: -3}, {X: -1000, Y: 999}, {X: vec.MaxCoord, Y: -vec.MaxCoord}} {
		e := a.Elevation(p.X, p.Y)
		assert.Equal(t, e, b.Elevation(p.X, p.Y), "высота должна зависеть только от сида и координат")
		assert.GreaterOrEqual(t, e, 0.0)
		assert.LessOrEqual(t, e, 1.0)
	}
}

func TestBandForIsTotalAndDisjoint(t *testing.T) {
	c := newTestGenerator(t, 1).Classifier()

	cases := []struct {
		elevation float64
		want      block.Type
	}{
		{0.0, block.Water},
		{0.2999, block.Water},
		{0.30, block.Sand},
		{0.3999, block.Sand},
		{0.40, block.Grass},
		{0.6999, block.Grass},
		{0.70, block.Stone},
		{0.8499, block.Stone},
		{0.85, block.DeepStone},
		{1.0, block.DeepStone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.BandFor(tc.elevation), "высота %.4f", tc.elevation)
	}
}

func TestClassifierRejectsBadThresholds(t *testing.T) {
	cfg := config.DefaultWorld().Terrain
	cfg.Thresholds.Sand = cfg.Thresholds.Water

	_, err := NewClassifier(42, cfg)
	require.Error(t, err)

	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestPlaceResourceRespectsEligibility(t *testing.T) {
	g := newTestGenerator(t, 7)
	p := g.Placer()

	allowed := map[block.Type][]block.Type{
		block.Water:     nil,
		block.Sand:      nil,
		block.Grass:     {block.Wood},
		block.Dirt:      {block.Wood},
		block.Stone:     {block.Coal},
		block.DeepStone: {block.Diamond, block.Lava, block.Coal},
	}

	for base, resources := range allowed {
		for x := -200; x < 200; x++ {
			res, ok := p.PlaceResource(x, x*3, base)
			if !ok {
				continue
			}
			assert.Contains(t, resources, res, "ресурс %s на базе %s", res, base)
		}
	}
}

func TestPlaceResourceDeterministic(t *testing.T) {
	a := newTestGenerator(t, 99).Placer()
	b := newTestGenerator(t, 99).Placer()

	for x := 0; x < 500; x++ {
		ra, oka := a.PlaceResource(x, -x, block.DeepStone)
		rb, okb := b.PlaceResource(x, -x, block.DeepStone)
		assert.Equal(t, oka, okb)
		assert.Equal(t, ra, rb)
	}
}

func TestZeroDensityDisablesResources(t *testing.T) {
	cfg := config.DefaultWorld()
	cfg.Streaming.Workers = 1
	cfg.Resources.Wood = 0
	cfg.Resources.Coal = 0
	cfg.Resources.Lava = 0
	cfg.Resources.Diamond = 0
	cfg.Resources.LavaPoolThreshold = 1

	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	for x := 0; x < 300; x++ {
		for _, base := range []block.Type{block.Grass, block.Stone, block.DeepStone} {
			_, ok := g.Placer().PlaceResource(x, x, base)
			assert.False(t, ok)
		}
	}
}

func TestLavaPoolOverridesDensityRoll(t *testing.T) {
	cfg := config.DefaultWorld()
	cfg.Streaming.Workers = 1
	cfg.Resources.Lava = 0
	cfg.Resources.Diamond = 0

	g, err := NewGenerator(cfg)
	require.NoError(t, err)
	p := g.Placer()
	c := g.Classifier()

	pooled, deepPooled := 0, 0
	for x := -1500; x < 1500; x += 7 {
		for y := -1500; y < 1500; y += 7 {
			inPool := p.InLavaPool(x, y)

			res, ok := p.PlaceResource(x, y, block.DeepStone)
			if inPool {
				pooled++
				assert.True(t, ok, "в озере (%d,%d) должен быть ресурс", x, y)
				assert.Equal(t, block.Lava, res, "в озере (%d,%d) лава при нулевой плотности", x, y)
			} else if ok {
				assert.NotEqual(t, block.Lava, res, "вне озера лава при нулевой плотности (%d,%d)", x, y)
			}

			if res, ok := p.PlaceResource(x, y, block.Stone); ok {
				assert.NotEqual(t, block.Lava, res, "лава на камне (%d,%d)", x, y)
			}

			if inPool && c.Classify(x, y) == block.DeepStone {
				deepPooled++
				assert.Equal(t, block.Lava, g.BlockAt(x, y), "глубинный камень в озере (%d,%d)", x, y)
			}
			if c.Classify(x, y) == block.Stone {
				assert.NotEqual(t, block.Lava, g.BlockAt(x, y), "лава на камне (%d,%d)", x, y)
			}
		}
	}
	assert.Positive(t, pooled, "поле озёр ни разу не превысило порог")
	t.Logf("озёр: %d, из них на глубинном камне: %d", pooled, deepPooled)
}

func TestResourceDensityApproximatesConfig(t *testing.T) {
	g := newTestGenerator(t, 42)

	const n = 20000
	wood := 0
	for i := 0; i < n; i++ {
		if res, ok := g.Placer().PlaceResource(i, 0, block.Grass); ok && res == block.Wood {
			wood++
		}
	}
	assert.InDelta(t, 0.08, float64(wood)/n, 0.015, "доля деревьев на траве")
}

func TestBlockAtNeverReturnsUnassignedTypes(t *testing.T) {
	g := newTestGenerator(t, 42)

	for y := -64; y < 64; y++ {
		for x := -64; x < 64; x++ {
			bt := g.BlockAt(x, y)
			assert.True(t, block.IsValid(bt), "тип %d должен быть зарегистрирован", bt)
			// Dirt появляется только после изменений, генерация его не выдаёт
			assert.NotEqual(t, block.Dirt, bt)
		}
	}
}

func TestGenerateGridMatchesBlockAt(t *testing.T) {
	g := newTestGenerator(t, 42)
	side := g.ChunkSize()

	for _, coords := range []vec.Vec2{{X: 0, Y: 0}, {X: -1, Y: -1}, {X: 5, Y: -3}} {
		grid := g.GenerateGrid(coords)
		require.Len(t, grid, side*side)

		origin := coords.ChunkOrigin(side)
		for ly := 0; ly < side; ly++ {
			for lx := 0; lx < side; lx++ {
				assert.Equal(t, g.BlockAt(origin.X+lx, origin.Y+ly), grid[ly*side+lx])
			}
		}
	}
}

func TestGenerateGridIndependentOfOrder(t *testing.T) {
	a := newTestGenerator(t, 42)
	b := newTestGenerator(t, 42)

	first := a.GenerateGrid(vec.Vec2{X: 3, Y: 3})
	_ = b.GenerateGrid(vec.Vec2{X: -10, Y: 8})
	_ = b.GenerateGrid(vec.Vec2{X: 100, Y: 0})
	second := b.GenerateGrid(vec.Vec2{X: 3, Y: 3})

	assert.Equal(t, first, second, "результат не должен зависеть от порядка генерации")
}

func TestDifferentSeedsProduceDifferentWorlds(t *testing.T) {
	a := newTestGenerator(t, 1).GenerateGrid(vec.Vec2{})
	b := newTestGenerator(t, 2).GenerateGrid(vec.Vec2{})
	assert.NotEqual(t, a, b)
}

func TestSurveyCountsEveryBlock(t *testing.T) {
	g := newTestGenerator(t, 42)
	area := vec.NewRect(vec.Vec2{X: -32, Y: -32}, 64, 48)

	d := Survey(g, area)
	assert.Equal(t, area.Area(), d.Total)

	sum := 0
	pct := 0.0
	for _, bt := range d.Types() {
		sum += d.Counts[bt]
		pct += d.Percent(bt)
	}
	assert.Equal(t, d.Total, sum)
	assert.InDelta(t, 100.0, pct, 1e-9)

	hist := ElevationHistogram(g, area, 10)
	total := 0
	for _, v := range hist {
		total += v
	}
	assert.Equal(t, area.Area(), total)
}

func TestDeviationAgainstTargets(t *testing.T) {
	d := Distribution{
		Total:  100,
		Counts: map[block.Type]int{block.Water: 30, block.Grass: 70},
	}
	dev := d.Deviation(map[block.Type]float64{block.Water: 25, block.Grass: 35, block.Sand: 10})

	assert.InDelta(t, 5.0, dev[block.Water], 1e-9)
	assert.InDelta(t, 35.0, dev[block.Grass], 1e-9)
	assert.InDelta(t, -10.0, dev[block.Sand], 1e-9)
}
