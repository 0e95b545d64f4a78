package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"

	"github.com/shopmind/recembed/internal/datastore"
	"github.com/shopmind/recembed/internal/repo"
)

type Config struct {
	Port        int                 `json:"port"`
	JWTSecret   string              `json:"jwt_secret"`
	JWTTTLHours int                 `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig    `json:"log_config"`
	Database    repo.DatabaseConfig `json:"database"`
	DataStore   datastore.Config    `json:"data_store"`
	Platform    PlatformConfig      `json:"platform"`
	Embedder    EmbedderConfig      `json:"embedder"`
	Gemini      GeminiConfig        `json:"gemini"`
	Schedule    ScheduleConfig      `json:"schedule"`
	Recommend   RecommendConfig     `json:"recommend"`
}

type PlatformConfig struct {
	BaseURL   string `json:"base_url"`
	AuthToken string `json:"auth_token"`
}

type EmbedderConfig struct {
	Provider     string      `json:"provider"`
	Data         interface{} `json:"data"`
	ModelVersion string      `json:"model_version"`
	CacheSize    int         `json:"cache_size"`
	CacheTTLMins int         `json:"cache_ttl_mins"`
}

type GeminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

type ScheduleConfig struct {
	ResyncSpec       string `json:"resync_spec"`
	ResyncBatch      int    `json:"resync_batch"`
	ReaperSpec       string `json:"reaper_spec"`
	EndpointTTLHours int    `json:"endpoint_ttl_hours"`
}

type RecommendConfig struct {
	DefaultK      int `json:"default_k"`
	MaxK          int `json:"max_k"`
	MaxCandidates int `json:"max_candidates"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database dsn or host is required")
	}
	if cfg.DataStore.Type == "" {
		cfg.DataStore.Type = "local"
		cfg.DataStore.Data = map[string]interface{}{"dir": "./data/channels"}
	}
	if cfg.Embedder.Provider == "" {
		return nil, fmt.Errorf("embedder.provider is required")
	}
	if cfg.Embedder.ModelVersion == "" {
		cfg.Embedder.ModelVersion = "v1"
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = 10000
	}
	if cfg.Embedder.CacheTTLMins == 0 {
		cfg.Embedder.CacheTTLMins = 120
	}
	if cfg.Schedule.ResyncSpec == "" {
		cfg.Schedule.ResyncSpec = "*/15 * * * *"
	}
	if cfg.Schedule.ResyncBatch == 0 {
		cfg.Schedule.ResyncBatch = 200
	}
	if cfg.Schedule.ReaperSpec == "" {
		cfg.Schedule.ReaperSpec = "0 * * * *"
	}
	if cfg.Schedule.EndpointTTLHours == 0 {
		cfg.Schedule.EndpointTTLHours = 24
	}
	if cfg.Recommend.DefaultK == 0 {
		cfg.Recommend.DefaultK = 10
	}
	if cfg.Recommend.MaxK == 0 {
		cfg.Recommend.MaxK = 100
	}
	if cfg.Recommend.MaxCandidates == 0 {
		cfg.Recommend.MaxCandidates = 10000
	}
	return &cfg, nil
}
