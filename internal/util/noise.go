package util

import (
	"github.com/aquilax/go-perlin"
)

// Смещения уводят выборку от начала координат: на целочисленной решётке
// шум Перлина равен нулю, и район спавна получался бы однообразным.
const (
	noiseOffsetX = 10007.0
	noiseOffsetY = 10009.0
)

// NoiseParams параметры примитива шума Перлина
type NoiseParams struct {
	Alpha   float64 // Сглаживание шума
	Beta    float64 // Частота шума
	Octaves int32   // Количество октав
}

// DefaultNoiseParams возвращает параметры, с которыми шум инициализировался исторически
func DefaultNoiseParams() NoiseParams {
	return NoiseParams{Alpha: 2.0, Beta: 2.0, Octaves: 3}
}

// NoiseField детерминированное 2D поле шума, параметризованное сидом.
// После создания поле неизменяемо и безопасно для конкурентного чтения.
type NoiseField struct {
	seed   int64
	perlin *perlin.Perlin
}

// NewNoiseField создаёт поле шума Перлина с указанным сидом
func NewNoiseField(seed int64, params NoiseParams) *NoiseField {
	return &NoiseField{
		seed:   seed,
		perlin: perlin.NewPerlin(params.Alpha, params.Beta, params.Octaves, seed),
	}
}

// Seed возвращает сид поля
func (f *NoiseField) Seed() int64 {
	return f.seed
}

// Raw возвращает значение шума в точке (x*scale, y*scale) в естественном диапазоне [-1, 1]
func (f *NoiseField) Raw(x, y, scale float64) float64 {
	v := f.perlin.Noise2D((x+noiseOffsetX)*scale, (y+noiseOffsetY)*scale)
	return Clamp(v, -1, 1)
}

// Sample возвращает значение шума для указанных координат (от 0 до 1)
func (f *NoiseField) Sample(x, y, scale float64) float64 {
	// Преобразуем в диапазон от 0 до 1
	return (f.Raw(x, y, scale) + 1.0) / 2.0
}

// Clamp ограничивает значение диапазоном [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
