package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config — корневая структура конфигурации сервера
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	World   WorldConfig   `yaml:"world"`
	Script  ScriptConfig  `yaml:"script"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig — сетевые параметры и параметры тика
type ServerConfig struct {
	ListenPort                int `yaml:"listen_port"`
	MetricsPort               int `yaml:"metrics_port"`
	ProcessIntervalMs         int `yaml:"process_interval_ms"`
	ClientConnectionTimeoutMs int `yaml:"client_connection_timeout_ms"`
}

// WorldConfig — параметры мира и репликации
type WorldConfig struct {
	PlayerChunkViewRadius int   `yaml:"player_chunk_view_radius"`
	BlocksInChunkEdge     int   `yaml:"blocks_in_chunk_edge"`
	MaxSnapshotDiff       int   `yaml:"max_snapshot_diff"`
	GenerationSeed        int64 `yaml:"generation_seed"`
}

// ScriptConfig — бюджет гостевых вызовов
type ScriptConfig struct {
	FuelPerCall      int64 `yaml:"script_fuel_per_call"`
	MemoryLimitBytes int64 `yaml:"script_memory_limit_bytes"`
}

// StorageConfig — параметры постоянного хранилища
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	AssetsPath   string `yaml:"assets_path"`
}

// GetListenPort возвращает UDP порт с поддержкой fallback значений
func (s *ServerConfig) GetListenPort() int {
	return getIntWithEnvFallback(s.ListenPort, "VOXBRIX_LISTEN_PORT", 25025)
}

// GetMetricsPort возвращает порт Prometheus метрик с fallback значениями
func (s *ServerConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(s.MetricsPort, "VOXBRIX_METRICS_PORT", 2112)
}

// ProcessInterval возвращает период тика
func (s *ServerConfig) ProcessInterval() time.Duration {
	ms := getIntWithEnvFallback(s.ProcessIntervalMs, "VOXBRIX_PROCESS_INTERVAL_MS", 50)
	return time.Duration(ms) * time.Millisecond
}

// ClientConnectionTimeout возвращает таймаут бездействия клиента
func (s *ServerConfig) ClientConnectionTimeout() time.Duration {
	ms := getIntWithEnvFallback(s.ClientConnectionTimeoutMs, "VOXBRIX_CLIENT_TIMEOUT_MS", 5000)
	return time.Duration(ms) * time.Millisecond
}

// GetPlayerChunkViewRadius возвращает радиус обзора игрока в чанках
func (w *WorldConfig) GetPlayerChunkViewRadius() int32 {
	return int32(getIntWithEnvFallback(w.PlayerChunkViewRadius, "VOXBRIX_VIEW_RADIUS", 2))
}

// GetBlocksInChunkEdge возвращает размер ребра чанка в блоках
func (w *WorldConfig) GetBlocksInChunkEdge() int32 {
	return int32(getIntWithEnvFallback(w.BlocksInChunkEdge, "VOXBRIX_CHUNK_EDGE", 32))
}

// GetMaxSnapshotDiff возвращает длину окна истории снапшотов
func (w *WorldConfig) GetMaxSnapshotDiff() uint64 {
	return uint64(getIntWithEnvFallback(w.MaxSnapshotDiff, "VOXBRIX_MAX_SNAPSHOT_DIFF", 300))
}

// GetFuelPerCall возвращает бюджет инструкций на один гостевой вызов
func (s *ScriptConfig) GetFuelPerCall() int64 {
	if s.FuelPerCall > 0 {
		return s.FuelPerCall
	}
	return 10_000_000
}

// GetMemoryLimitBytes возвращает лимит памяти гостевого модуля
func (s *ScriptConfig) GetMemoryLimitBytes() int64 {
	if s.MemoryLimitBytes > 0 {
		return s.MemoryLimitBytes
	}
	return 16 << 20
}

// GetDatabasePath возвращает путь к базе данных
func (s *StorageConfig) GetDatabasePath() string {
	if s.DatabasePath != "" {
		return s.DatabasePath
	}
	if p := os.Getenv("VOXBRIX_DATABASE_PATH"); p != "" {
		return p
	}
	return "data"
}

// GetAssetsPath возвращает путь к каталогу ассетов
func (s *StorageConfig) GetAssetsPath() string {
	if s.AssetsPath != "" {
		return s.AssetsPath
	}
	return "assets"
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configVal int, envVar string, defaultVal int) int {
	if configVal > 0 {
		return configVal
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultVal
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV VOXBRIX_CONFIG
// или возвращает nil, nil (использовать дефолты).
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXBRIX_CONFIG")
		if path == "" {
			return nil, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
