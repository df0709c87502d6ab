package block

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[Type]Properties)
	byName     = make(map[string]Type)
	registryMu sync.RWMutex
)

// Register добавляет свойства типа блока в регистр.
// Повторная регистрация перезаписывает свойства.
func Register(t Type, props Properties) {
	registryMu.Lock()
	defer registryMu.Unlock()

	props.Type = t
	registry[t] = props
	byName[strings.ToLower(props.Name)] = t
}

// Get возвращает свойства для указанного типа
func Get(t Type) (Properties, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	props, exists := registry[t]
	return props, exists
}

// IsValid проверяет, является ли тип зарегистрированным типом блока
func IsValid(t Type) bool {
	_, exists := Get(t)
	return exists
}

// Parse находит тип блока по имени (без учёта регистра)
func Parse(name string) (Type, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("неизвестный тип блока %q", name)
	}
	return t, nil
}

// All возвращает все зарегистрированные типы в порядке возрастания
func All() []Type {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
