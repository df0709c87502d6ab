package terrain

import (
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/world/block"
)

// Дискриминанты бросков: у каждого ресурса своя независимая случайная величина.
const (
	rollDiamond uint64 = iota + 1
	rollLava
	rollCoal
	rollWood
)

// lavaPoolSeedOffset отделяет поле лавовых озёр от слоёв высот
const lavaPoolSeedOffset = 2000

// resourceRule правило размещения одного ресурса
type resourceRule struct {
	resource     block.Type
	eligible     []block.Type
	density      float64
	discriminant uint64
}

// Placer решает, перекрывает ли ресурс базовый ландшафт.
// Приоритет: Diamond > Lava > Coal > Wood; первое сработавшее правило побеждает.
type Placer struct {
	seed          int64
	rules         []resourceRule
	poolField     *util.NoiseField
	poolScale     float64
	poolThreshold float64
}

// NewPlacer создаёт размещатель ресурсов
func NewPlacer(seed int64, cfg config.ResourceConfig, params util.NoiseParams) (*Placer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Placer{
		seed: seed,
		rules: []resourceRule{
			{resource: block.Diamond, eligible: []block.Type{block.DeepStone}, density: cfg.Diamond, discriminant: rollDiamond},
			{resource: block.Lava, eligible: []block.Type{block.DeepStone}, density: cfg.Lava, discriminant: rollLava},
			{resource: block.Coal, eligible: []block.Type{block.Stone, block.DeepStone}, density: cfg.Coal, discriminant: rollCoal},
			{resource: block.Wood, eligible: []block.Type{block.Grass, block.Dirt}, density: cfg.Wood, discriminant: rollWood},
		},
		poolField:     util.NewNoiseField(seed+lavaPoolSeedOffset, params),
		poolScale:     cfg.LavaPoolScale,
		poolThreshold: cfg.LavaPoolThreshold,
	}, nil
}

// PlaceResource возвращает ресурс для координаты или false, если остаётся базовый ландшафт
func (p *Placer) PlaceResource(x, y int, base block.Type) (block.Type, bool) {
	for _, rule := range p.rules {
		if !contains(rule.eligible, base) {
			continue
		}

		// Лавовые озёра: вторичное поле шума, выше порога лава ставится всегда
		if rule.resource == block.Lava && p.InLavaPool(x, y) {
			return block.Lava, true
		}

		if util.Roll(p.seed, x, y, rule.discriminant) < rule.density {
			return rule.resource, true
		}
	}
	return 0, false
}

// InLavaPool сообщает, превышает ли поле лавовых озёр порог в точке
func (p *Placer) InLavaPool(x, y int) bool {
	return p.poolField.Sample(float64(x), float64(y), p.poolScale) > p.poolThreshold
}

func contains(types []block.Type, t block.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
