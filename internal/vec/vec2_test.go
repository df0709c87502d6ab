package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDivAndMod(t *testing.T) {
	cases := []struct {
		a, b, div, mod int
	}{
		{0, 16, 0, 0},
		{15, 16, 0, 15},
		{16, 16, 1, 0},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
	}

	for _, c := range cases {
		assert.Equal(t, c.div, FloorDiv(c.a, c.b), "FloorDiv(%d, %d)", c.a, c.b)
		assert.Equal(t, c.mod, FloorMod(c.a, c.b), "FloorMod(%d, %d)", c.a, c.b)
	}
}

func TestChunkTiling(t *testing.T) {
	// Каждая мировая координата принадлежит ровно одному чанку,
	// а обратное преобразование возвращает исходную точку.
	side := 16
	seen := make(map[Vec2]Vec2)
	for x := -40; x < 40; x++ {
		for y := -40; y < 40; y++ {
			p := Vec2{X: x, Y: y}
			chunk := p.ToChunkCoords(side)
			local := p.LocalInChunk(side)

			assert.True(t, local.X >= 0 && local.X < side && local.Y >= 0 && local.Y < side)
			assert.Equal(t, p, chunk.ChunkOrigin(side).Add(local), "точка %v не восстановлена", p)

			_, dup := seen[p]
			assert.False(t, dup)
			seen[p] = chunk
		}
	}
}

func TestInRange(t *testing.T) {
	assert.True(t, Vec2{X: MaxCoord, Y: -MaxCoord}.InRange())
	assert.False(t, Vec2{X: MaxCoord + 1, Y: 0}.InRange())
	assert.False(t, Vec2{X: 0, Y: -MaxCoord - 1}.InRange())
}

func TestChunkInRange(t *testing.T) {
	side := 16
	limit := MaxCoord / side

	assert.True(t, Vec2{X: limit - 1, Y: -limit}.ChunkInRange(side), "крайние чанки целиком в диапазоне")
	assert.True(t, Vec2{X: limit - 1}.ChunkOrigin(side).Add(Vec2{X: side - 1}).InRange())
	assert.True(t, Vec2{Y: -limit}.ChunkOrigin(side).InRange())

	// Последний блок чанка limit выходит за MaxCoord
	assert.False(t, Vec2{X: limit}.ChunkInRange(side))
	assert.False(t, Vec2{Y: -limit - 1}.ChunkInRange(side))

	// Умножение на side переполнило бы int и дало чанк (0,0)
	assert.False(t, Vec2{X: 1 << 60}.ChunkInRange(side))
	assert.False(t, Vec2{Y: -(1 << 62)}.ChunkInRange(side))
	assert.False(t, Vec2{}.ChunkInRange(0))
}

func TestChebyshevDistance(t *testing.T) {
	assert.Equal(t, 3, Vec2{X: 0, Y: 0}.ChebyshevDistance(Vec2{X: -3, Y: 2}))
	assert.Equal(t, 0, Vec2{X: 5, Y: 5}.ChebyshevDistance(Vec2{X: 5, Y: 5}))
}

func TestRectArea(t *testing.T) {
	r := NewRect(Vec2{X: -2, Y: 3}, 10, 4)
	assert.Equal(t, 10, r.Width())
	assert.Equal(t, 4, r.Height())
	assert.Equal(t, 40, r.Area())
	assert.Equal(t, 0, Rect{}.Area())
}
