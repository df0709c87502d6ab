package block

// Type представляет тип блока. Значения фиксированы: они попадают в
// сохранённые чанки, поэтому порядок констант менять нельзя.
type Type uint8

// Константы типов блоков
const (
	Water     Type = iota + 1 // 1
	Sand                      // 2
	Grass                     // 3
	Dirt                      // 4
	Stone                     // 5
	DeepStone                 // 6
	Wood                      // 7
	Coal                      // 8
	Lava                      // 9
	Diamond                   // 10
)

// String возвращает имя типа блока
func (t Type) String() string {
	if props, ok := Get(t); ok {
		return props.Name
	}
	return "unknown"
}

// MarshalText кодирует тип по имени (используется в JSON/YAML)
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText декодирует тип из имени
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsBaseTerrain возвращает true для типов, которые даёт классификатор высот
func (t Type) IsBaseTerrain() bool {
	switch t {
	case Water, Sand, Grass, Stone, DeepStone:
		return true
	default:
		return false
	}
}

// IsResource возвращает true для ресурсов, перекрывающих базовый ландшафт
func (t Type) IsResource() bool {
	switch t {
	case Wood, Coal, Lava, Diamond:
		return true
	default:
		return false
	}
}
