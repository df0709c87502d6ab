package terrain

import (
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// Generator генерирует ландшафт мира
type Generator struct {
	seed       int64
	side       int
	classifier *Classifier
	placer     *Placer
}

// NewGenerator создаёт генератор по конфигурации мира
func NewGenerator(cfg config.WorldConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classifier, err := NewClassifier(cfg.Seed, cfg.Terrain)
	if err != nil {
		return nil, err
	}

	params := util.NoiseParams{
		Alpha:   cfg.Terrain.Perlin.Alpha,
		Beta:    cfg.Terrain.Perlin.Beta,
		Octaves: cfg.Terrain.Perlin.Octaves,
	}
	placer, err := NewPlacer(cfg.Seed, cfg.Resources, params)
	if err != nil {
		return nil, err
	}

	return &Generator{
		seed:       cfg.Seed,
		side:       cfg.ChunkSize,
		classifier: classifier,
		placer:     placer,
	}, nil
}

// Seed возвращает сид генератора
func (g *Generator) Seed() int64 { return g.seed }

// ChunkSize возвращает сторону чанка в блоках
func (g *Generator) ChunkSize() int { return g.side }

// Classifier возвращает классификатор высот
func (g *Generator) Classifier() *Classifier { return g.classifier }

// Placer возвращает размещатель ресурсов
func (g *Generator) Placer() *Placer { return g.placer }

// BlockAt возвращает итоговый тип блока: базовый ландшафт, затем ресурс поверх него
func (g *Generator) BlockAt(x, y int) block.Type {
	base := g.classifier.Classify(x, y)
	if resource, ok := g.placer.PlaceResource(x, y, base); ok {
		return resource
	}
	return base
}

// GenerateGrid генерирует блоки чанка по его координатам.
// Сетка хранится построчно: индекс ly*side + lx.
func (g *Generator) GenerateGrid(coords vec.Vec2) []block.Type {
	grid := make([]block.Type, g.side*g.side)
	origin := coords.ChunkOrigin(g.side)

	for ly := 0; ly < g.side; ly++ {
		for lx := 0; lx < g.side; lx++ {
			grid[ly*g.side+lx] = g.BlockAt(origin.X+lx, origin.Y+ly)
		}
	}
	return grid
}
