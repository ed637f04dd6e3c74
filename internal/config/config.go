package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Defaults    DefaultsConfig            `json:"defaults"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// DefaultsConfig seeds new sessions and the speech dispatcher.
type DefaultsConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Language    string  `json:"language"`
	Speed       float64 `json:"speed"`
	SpeechModel string  `json:"speech_model"`
}

type BasicConfig struct {
	ServerAddress      string `json:"server_address"`
	ArtifactDir        string `json:"artifact_dir"`
	ArtifactTTL        int    `json:"artifact_ttl"`            // minutes
	ArtifactCleanEvery int    `json:"artifact_clean_interval"` // minutes
	FetchTimeout       int    `json:"fetch_timeout"`           // seconds
	FetchCacheTTL      int    `json:"fetch_cache_ttl"`         // minutes
	MinWorkers         int    `json:"min_workers"`
	MaxWorkers         int    `json:"max_workers"`
	QueueSize          int    `json:"queue_size"`
	WorkerIdleTimeout  int    `json:"worker_idle_timeout"` // minutes
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider must be configured")
	}
	if cfg.Defaults.Provider == "" {
		return nil, fmt.Errorf("defaults.provider must be configured")
	}
	if _, ok := cfg.Providers[cfg.Defaults.Provider]; !ok {
		return nil, fmt.Errorf("defaults.provider %q is not in providers", cfg.Defaults.Provider)
	}
	if cfg.Defaults.Language == "" {
		cfg.Defaults.Language = "en-US"
	}
	if cfg.Defaults.Speed == 0 {
		cfg.Defaults.Speed = 1.0
	}
	if cfg.Defaults.SpeechModel == "" {
		cfg.Defaults.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.BasicConfig.ArtifactDir == "" {
		cfg.BasicConfig.ArtifactDir = "./data/audio"
	}
	if !filepath.IsAbs(cfg.BasicConfig.ArtifactDir) {
		cfg.BasicConfig.ArtifactDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.ArtifactDir)
	}

	return &cfg, nil
}
