package config

import (
	"fmt"
	"math"
)

// ConfigurationError описывает некорректную конфигурацию.
// Такая ошибка фатальна при создании мира.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("некорректная конфигурация %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate проверяет всю конфигурацию и возвращает первую найденную ошибку
func (c *Config) Validate() error {
	if err := c.World.Validate(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case "badger", "file", "sqlite":
		if c.Storage.Path == "" {
			return invalid("storage.path", "путь обязателен для бэкенда %s", c.Storage.Backend)
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return invalid("storage.redis.addr", "адрес Redis не задан")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return invalid("storage.postgres.dsn", "DSN PostgreSQL не задан")
		}
	case "memory":
	default:
		return invalid("storage.backend", "неизвестный бэкенд %q", c.Storage.Backend)
	}

	switch c.EventBus.Backend {
	case "memory", "nats", "none", "":
	default:
		return invalid("eventbus.backend", "неизвестный бэкенд %q", c.EventBus.Backend)
	}

	if c.Server.Tracing && c.Server.OTLPEndpoint == "" {
		return invalid("server.otlp_endpoint", "адрес коллектора обязателен при включённой трассировке")
	}

	return nil
}

// Validate проверяет параметры мира
func (w *WorldConfig) Validate() error {
	if w.ChunkSize < 1 || w.ChunkSize > 1024 {
		return invalid("world.chunk_size", "ожидалось значение в [1, 1024], получено %d", w.ChunkSize)
	}
	if err := w.Terrain.Validate(); err != nil {
		return err
	}
	if err := w.Resources.Validate(); err != nil {
		return err
	}
	return w.Streaming.Validate()
}

// Validate проверяет параметры классификатора
func (t *TerrainConfig) Validate() error {
	if t.Perlin.Alpha <= 0 || t.Perlin.Beta <= 0 || t.Perlin.Octaves < 1 {
		return invalid("world.terrain.perlin", "alpha и beta должны быть > 0, octaves >= 1")
	}

	if len(t.Octaves) == 0 {
		return invalid("world.terrain.octaves", "нужен хотя бы один слой шума")
	}
	total := 0.0
	for i, o := range t.Octaves {
		if !finite(o.Scale) || o.Scale <= 0 {
			return invalid(fmt.Sprintf("world.terrain.octaves[%d].scale", i), "масштаб должен быть > 0")
		}
		if !finite(o.Weight) || o.Weight < 0 {
			return invalid(fmt.Sprintf("world.terrain.octaves[%d].weight", i), "вес должен быть >= 0")
		}
		total += o.Weight
	}
	if total <= 0 {
		return invalid("world.terrain.octaves", "сумма весов должна быть > 0")
	}

	if !inUnit(t.StretchMin) || !inUnit(t.StretchMax) || t.StretchMin >= t.StretchMax {
		return invalid("world.terrain.stretch", "ожидалось 0 <= stretch_min < stretch_max <= 1")
	}

	return t.Thresholds.Validate()
}

// Validate проверяет, что пороги строго возрастают внутри (0, 1).
func (th Thresholds) Validate() error {
	ordered := []struct {
		name  string
		value float64
	}{
		{"water", th.Water},
		{"sand", th.Sand},
		{"grass", th.Grass},
		{"stone", th.Stone},
	}

	prev := 0.0
	for _, o := range ordered {
		if !finite(o.value) || o.value <= prev || o.value >= 1 {
			return invalid("world.terrain.thresholds."+o.name,
				"пороги должны строго возрастать в (0, 1): %.3f после %.3f", o.value, prev)
		}
		prev = o.value
	}
	return nil
}

// Validate проверяет плотности ресурсов
func (r *ResourceConfig) Validate() error {
	densities := []struct {
		name  string
		value float64
	}{
		{"wood", r.Wood},
		{"coal", r.Coal},
		{"lava", r.Lava},
		{"diamond", r.Diamond},
		{"lava_pool_threshold", r.LavaPoolThreshold},
	}
	for _, d := range densities {
		if !inUnit(d.value) {
			return invalid("world.resources."+d.name, "ожидалось значение в [0, 1], получено %v", d.value)
		}
	}
	if !finite(r.LavaPoolScale) || r.LavaPoolScale <= 0 {
		return invalid("world.resources.lava_pool_scale", "масштаб должен быть > 0")
	}
	return nil
}

// Validate проверяет параметры стриминга чанков
func (s *StreamingConfig) Validate() error {
	if s.LoadRadius < 0 {
		return invalid("world.streaming.load_radius", "радиус не может быть отрицательным")
	}
	if s.UnloadRadius <= s.LoadRadius {
		return invalid("world.streaming.unload_radius",
			"радиус выгрузки (%d) должен быть больше радиуса загрузки (%d)", s.UnloadRadius, s.LoadRadius)
	}
	if s.Workers < 1 {
		return invalid("world.streaming.workers", "нужен хотя бы один воркер")
	}
	if s.AutosaveInterval < 0 {
		return invalid("world.streaming.autosave_interval", "интервал не может быть отрицательным")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inUnit(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}
