package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	World    WorldConfig    `yaml:"world"`
	Storage  StorageConfig  `yaml:"storage"`
	EventBus EventBusConfig `yaml:"eventbus"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// WorldConfig описывает параметры одного мира: сид, размер чанка, генерацию и стриминг.
type WorldConfig struct {
	Seed      int64           `yaml:"seed"`
	ChunkSize int             `yaml:"chunk_size"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Resources ResourceConfig  `yaml:"resources"`
	Streaming StreamingConfig `yaml:"streaming"`
}

// NoiseOctave один слой шума высот: частота и вес в итоговой сумме.
type NoiseOctave struct {
	Name   string  `yaml:"name"`
	Scale  float64 `yaml:"scale"`
	Weight float64 `yaml:"weight"`
}

// PerlinConfig параметры примитива шума Перлина (go-perlin).
type PerlinConfig struct {
	Alpha   float64 `yaml:"alpha"`   // Сглаживание шума
	Beta    float64 `yaml:"beta"`    // Частота шума
	Octaves int32   `yaml:"octaves"` // Количество внутренних октав
}

// Thresholds пороги классификации высоты, строго возрастающие в (0, 1).
type Thresholds struct {
	Water float64 `yaml:"water"`
	Sand  float64 `yaml:"sand"`
	Grass float64 `yaml:"grass"`
	Stone float64 `yaml:"stone"`
}

// TerrainConfig параметры классификатора ландшафта.
type TerrainConfig struct {
	Perlin     PerlinConfig  `yaml:"perlin"`
	Octaves    []NoiseOctave `yaml:"octaves"`
	StretchMin float64       `yaml:"stretch_min"` // Нижняя граница растяжения распределения
	StretchMax float64       `yaml:"stretch_max"` // Верхняя граница растяжения распределения
	Thresholds Thresholds    `yaml:"thresholds"`
}

// ResourceConfig плотности ресурсов и параметры лавовых озёр.
type ResourceConfig struct {
	Wood              float64 `yaml:"wood"`
	Coal              float64 `yaml:"coal"`
	Lava              float64 `yaml:"lava"`
	Diamond           float64 `yaml:"diamond"`
	LavaPoolScale     float64 `yaml:"lava_pool_scale"`
	LavaPoolThreshold float64 `yaml:"lava_pool_threshold"`
}

// StreamingConfig управляет загрузкой и выгрузкой чанков вокруг игрока.
// Радиусы задаются в чанках; UnloadRadius > LoadRadius даёт гистерезис.
type StreamingConfig struct {
	LoadRadius       int           `yaml:"load_radius"`
	UnloadRadius     int           `yaml:"unload_radius"`
	Workers          int           `yaml:"workers"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

// StorageConfig выбирает бэкенд хранения изменённых чанков.
type StorageConfig struct {
	Backend  string         `yaml:"backend"` // badger | file | redis | sqlite | postgres | memory
	Path     string         `yaml:"path"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig настройки подключения к PostgreSQL
type PostgresConfig struct {
	DSN       string `yaml:"dsn"`
	Namespace string `yaml:"namespace"` // Разделяет миры в одной базе
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// EventBusConfig настройки шины событий мира.
type EventBusConfig struct {
	Backend   string `yaml:"backend"` // memory | nats | none
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

// ServerConfig порты внешних интерфейсов.
type ServerConfig struct {
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	ServiceName string `yaml:"service_name"`
	Tracing     bool   `yaml:"tracing"`
	// OTLP HTTP коллектор трассировок (host:port)
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// LogConfig настройки логирования.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"` // Пустая строка — только консоль
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKWORLD_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BLOCKWORLD_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию и валидирует результат.
// Если path == "", пытается прочитать путь из ENV BLOCKWORLD_CONFIG; если и он пуст —
// возвращает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BLOCKWORLD_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigurationError{Field: path, Reason: err.Error()}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse разбирает YAML из памяти (используется в тестах и инструментах).
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigurationError{Field: "yaml", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv применяет переопределения из переменных окружения
func (c *Config) applyEnv() error {
	if envVal := os.Getenv("BLOCKWORLD_SEED"); envVal != "" {
		seed, err := strconv.ParseInt(envVal, 10, 64)
		if err != nil {
			return &ConfigurationError{Field: "BLOCKWORLD_SEED", Reason: "ожидалось целое число"}
		}
		c.World.Seed = seed
	}
	if envVal := os.Getenv("BLOCKWORLD_STORAGE_PATH"); envVal != "" {
		c.Storage.Path = envVal
	}
	if envVal := os.Getenv("BLOCKWORLD_POSTGRES_DSN"); envVal != "" {
		c.Storage.Postgres.DSN = envVal
	}
	return nil
}
