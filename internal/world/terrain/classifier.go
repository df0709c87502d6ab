package terrain

import (
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/world/block"
)

// Шаг сида между слоями шума высот: каждый слой получает своё поле,
// поэтому разные масштабы в одной точке не коррелируют.
const layerSeedStep = 100

// heightLayer один слой шума высот
type heightLayer struct {
	field  *util.NoiseField
	scale  float64
	weight float64
}

// Classifier превращает координату в базовый тип ландшафта по шкале высот
type Classifier struct {
	layers      []heightLayer
	totalWeight float64
	stretchMin  float64
	stretchMax  float64
	thresholds  config.Thresholds
}

// NewClassifier создаёт классификатор; некорректная конфигурация возвращает *config.ConfigurationError
func NewClassifier(seed int64, cfg config.TerrainConfig) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params := util.NoiseParams{
		Alpha:   cfg.Perlin.Alpha,
		Beta:    cfg.Perlin.Beta,
		Octaves: cfg.Perlin.Octaves,
	}

	c := &Classifier{
		layers:     make([]heightLayer, 0, len(cfg.Octaves)),
		stretchMin: cfg.StretchMin,
		stretchMax: cfg.StretchMax,
		thresholds: cfg.Thresholds,
	}
	for i, o := range cfg.Octaves {
		c.layers = append(c.layers, heightLayer{
			field:  util.NewNoiseField(seed+int64(i)*layerSeedStep, params),
			scale:  o.Scale,
			weight: o.Weight,
		})
		c.totalWeight += o.Weight
	}

	return c, nil
}

// Elevation возвращает нормализованную высоту в [0, 1]
func (c *Classifier) Elevation(x, y int) float64 {
	fx, fy := float64(x), float64(y)

	sum := 0.0
	for _, l := range c.layers {
		sum += l.weight * l.field.Sample(fx, fy, l.scale)
	}
	combined := sum / c.totalWeight

	// Сумма нескольких слоёв концентрируется около 0.5; растягиваем
	// рабочий интервал на весь [0, 1], чтобы пороги делили карту заметно.
	stretched := (combined - c.stretchMin) / (c.stretchMax - c.stretchMin)
	return util.Clamp(stretched, 0, 1)
}

// Classify возвращает базовый тип ландшафта: Water, Sand, Grass, Stone или DeepStone
func (c *Classifier) Classify(x, y int) block.Type {
	return c.BandFor(c.Elevation(x, y))
}

// BandFor отображает высоту в тип по порогам. Полосы проверяются снизу вверх,
// побеждает первая подходящая, поэтому каждое значение попадает ровно в одну.
func (c *Classifier) BandFor(e float64) block.Type {
	switch {
	case e < c.thresholds.Water:
		return block.Water
	case e < c.thresholds.Sand:
		return block.Sand
	case e < c.thresholds.Grass:
		return block.Grass
	case e < c.thresholds.Stone:
		return block.Stone
	default:
		return block.DeepStone
	}
}

// IsDeep сообщает, лежит ли высота в глубинной полосе
func (c *Classifier) IsDeep(e float64) bool {
	return e >= c.thresholds.Stone
}

// Thresholds возвращает действующие пороги
func (c *Classifier) Thresholds() config.Thresholds {
	return c.thresholds
}
