package config

import (
	"runtime"
	"time"
)

// Значения по умолчанию.
// В документации встречались два набора порогов (трава 0.60/0.70, камень 0.75/0.85);
// по умолчанию используется набор, соответствующий фактическим константам игры.
const (
	DefaultSeed      int64 = 42
	DefaultChunkSize       = 16

	DefaultWaterThreshold = 0.30
	DefaultSandThreshold  = 0.40
	DefaultGrassThreshold = 0.70
	DefaultStoneThreshold = 0.85
)

// Default возвращает полностью заполненную конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: DefaultWorld(),
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "data",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "blockworld:",
			},
		},
		EventBus: EventBusConfig{
			Backend:   "memory",
			URL:       "nats://127.0.0.1:4222",
			Stream:    "WORLD",
			Retention: 24,
			Buffer:    1024,
		},
		Server: ServerConfig{
			ServiceName:  "blockworld",
			OTLPEndpoint: "localhost:4318",
			OTLPInsecure: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultWorld возвращает параметры мира по умолчанию
func DefaultWorld() WorldConfig {
	return WorldConfig{
		Seed:      DefaultSeed,
		ChunkSize: DefaultChunkSize,
		Terrain: TerrainConfig{
			Perlin: PerlinConfig{Alpha: 2.0, Beta: 2.0, Octaves: 3},
			Octaves: []NoiseOctave{
				{Name: "continental", Scale: 0.005, Weight: 0.5},
				{Name: "regional", Scale: 0.02, Weight: 0.3},
				{Name: "local", Scale: 0.1, Weight: 0.1},
				{Name: "detail", Scale: 0.05, Weight: 0.1},
			},
			StretchMin: 0.35,
			StretchMax: 0.65,
			Thresholds: Thresholds{
				Water: DefaultWaterThreshold,
				Sand:  DefaultSandThreshold,
				Grass: DefaultGrassThreshold,
				Stone: DefaultStoneThreshold,
			},
		},
		Resources: ResourceConfig{
			Wood:              0.08,
			Coal:              0.15,
			Lava:              0.08,
			Diamond:           0.03,
			LavaPoolScale:     0.025,
			LavaPoolThreshold: 0.62,
		},
		Streaming: StreamingConfig{
			LoadRadius:       2,
			UnloadRadius:     4,
			Workers:          runtime.NumCPU(),
			AutosaveInterval: 5 * time.Minute,
		},
	}
}
