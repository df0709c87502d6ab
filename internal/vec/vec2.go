package vec

// MaxCoord ограничивает поддерживаемые блочные координаты по модулю.
// В этом диапазоне координаты точно представимы в float64, а произведение
// координаты чанка на его сторону не переполняет int.
const MaxCoord = 1 << 30

// Vec2 представляет 2D координаты
type Vec2 struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// InRange проверяет, что обе компоненты лежат в поддерживаемом диапазоне
func (v Vec2) InRange() bool {
	return v.X >= -MaxCoord && v.X <= MaxCoord && v.Y >= -MaxCoord && v.Y <= MaxCoord
}

// ChunkInRange проверяет координаты чанка со стороной side: все его блоки
// должны лежать в [-MaxCoord, MaxCoord]. Проверка идёт до умножения на side,
// поэтому огромные координаты не переполняют int.
func (v Vec2) ChunkInRange(side int) bool {
	if side <= 0 {
		return false
	}
	lo := -FloorDiv(MaxCoord, side)
	hi := FloorDiv(MaxCoord+1, side) - 1
	return v.X >= lo && v.X <= hi && v.Y >= lo && v.Y <= hi
}

// ToChunkCoords преобразует глобальные координаты в координаты чанка со стороной side.
// Деление с округлением вниз: (-1) принадлежит чанку -1, а не 0.
func (v Vec2) ToChunkCoords(side int) Vec2 {
	return Vec2{X: FloorDiv(v.X, side), Y: FloorDiv(v.Y, side)}
}

// LocalInChunk возвращает локальные координаты внутри чанка (всегда в [0, side))
func (v Vec2) LocalInChunk(side int) Vec2 {
	return Vec2{X: FloorMod(v.X, side), Y: FloorMod(v.Y, side)}
}

// ChunkOrigin возвращает мировые координаты левого верхнего блока чанка
func (v Vec2) ChunkOrigin(side int) Vec2 {
	return Vec2{X: v.X * side, Y: v.Y * side}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// ChebyshevDistance возвращает max(|dx|, |dy|) (расстояние Чебышёва)
func (v Vec2) ChebyshevDistance(other Vec2) int {
	dx := v.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := v.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// FloorDiv делит a на b с округлением к минус бесконечности (b > 0)
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && (a < 0) {
		q--
	}
	return q
}

// FloorMod возвращает неотрицательный остаток от деления a на b (b > 0)
func FloorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Rect прямоугольная область [Min, Max) в блочных координатах
type Rect struct {
	Min Vec2
	Max Vec2
}

// NewRect строит область из левого верхнего угла и размеров
func NewRect(origin Vec2, width, height int) Rect {
	return Rect{Min: origin, Max: Vec2{X: origin.X + width, Y: origin.Y + height}}
}

// Width возвращает ширину области
func (r Rect) Width() int { return r.Max.X - r.Min.X }

// Height возвращает высоту области
func (r Rect) Height() int { return r.Max.Y - r.Min.Y }

// Area возвращает количество блоков в области
func (r Rect) Area() int {
	if r.Width() <= 0 || r.Height() <= 0 {
		return 0
	}
	return r.Width() * r.Height()
}
