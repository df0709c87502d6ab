package terrain

import (
	"sort"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// Distribution распределение типов блоков на участке карты
type Distribution struct {
	Area   vec.Rect
	Total  int
	Counts map[block.Type]int
}

// Percent возвращает долю типа в процентах
func (d Distribution) Percent(t block.Type) float64 {
	if d.Total == 0 {
		return 0
	}
	return 100 * float64(d.Counts[t]) / float64(d.Total)
}

// Types возвращает встреченные типы, отсортированные по убыванию количества
func (d Distribution) Types() []block.Type {
	types := make([]block.Type, 0, len(d.Counts))
	for t := range d.Counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if d.Counts[types[i]] == d.Counts[types[j]] {
			return types[i] < types[j]
		}
		return d.Counts[types[i]] > d.Counts[types[j]]
	})
	return types
}

// Survey подсчитывает типы блоков в прямоугольной области
func Survey(g *Generator, area vec.Rect) Distribution {
	d := Distribution{
		Area:   area,
		Counts: make(map[block.Type]int),
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			d.Counts[g.BlockAt(x, y)]++
			d.Total++
		}
	}
	return d
}

// ElevationHistogram раскладывает высоты области по bins равным корзинам
func ElevationHistogram(g *Generator, area vec.Rect, bins int) []int {
	if bins < 1 {
		bins = 1
	}
	hist := make([]int, bins)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			i := int(g.classifier.Elevation(x, y) * float64(bins))
			if i >= bins {
				i = bins - 1
			}
			hist[i]++
		}
	}
	return hist
}

// DefaultTargets ориентировочное распределение базового ландшафта в процентах,
// под которое подбирались пороги по умолчанию
var DefaultTargets = map[block.Type]float64{
	block.Water:     25,
	block.Sand:      10,
	block.Grass:     35,
	block.Stone:     14,
	block.DeepStone: 6,
}

// Deviation возвращает отклонение фактической доли от целевой (в процентных пунктах)
func (d Distribution) Deviation(targets map[block.Type]float64) map[block.Type]float64 {
	out := make(map[block.Type]float64, len(targets))
	for t, want := range targets {
		out[t] = d.Percent(t) - want
	}
	return out
}
