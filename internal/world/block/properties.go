package block

// Properties содержит статические свойства типа блока
type Properties struct {
	Type     Type    // Тип блока
	Name     string  // Имя (используется в конфигурации и API)
	Walkable bool    // Можно ли ходить по блоку
	Minable  bool    // Можно ли добыть блок
	DecayTo  Type    // Во что превращается блок после добычи (только для Minable)
	Hardness float64 // Время добычи голыми руками, секунды
	Yield    Type    // Предмет, получаемый при добыче
}

// Decay возвращает тип, в который превращается блок после добычи.
// Второе значение false, если блок нельзя добыть.
func Decay(t Type) (Type, bool) {
	props, ok := Get(t)
	if !ok || !props.Minable {
		return t, false
	}
	return props.DecayTo, true
}

// Регистрируем все типы блоков при импорте пакета
func init() {
	// Базовый ландшафт
	Register(Water, Properties{Name: "water"})
	Register(Sand, Properties{Name: "sand", Walkable: true})
	Register(Grass, Properties{Name: "grass", Walkable: true})
	Register(Dirt, Properties{Name: "dirt", Walkable: true})
	Register(Stone, Properties{Name: "stone", Minable: true, DecayTo: Dirt, Hardness: 5.0, Yield: Stone})
	Register(DeepStone, Properties{Name: "deep_stone", Minable: true, DecayTo: Stone, Hardness: 7.0, Yield: Stone})

	// Ресурсы
	Register(Wood, Properties{Name: "wood", Minable: true, DecayTo: Dirt, Hardness: 1.5, Yield: Wood})
	Register(Coal, Properties{Name: "coal", Minable: true, DecayTo: Dirt, Hardness: 4.0, Yield: Coal})
	Register(Lava, Properties{Name: "lava"})
	Register(Diamond, Properties{Name: "diamond", Minable: true, DecayTo: Dirt, Hardness: 8.0, Yield: Diamond})
}
