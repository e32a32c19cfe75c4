package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int               `json:"port"`
	JWTSecret     string            `json:"jwt_secret"`
	Database      DatabaseConfig    `json:"database"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	AI            AIConfig          `json:"ai"`
	EmbedWorker   EmbedWorkerConfig `json:"embed_worker"`
	FileStore     FileStoreConfig   `json:"file_store"`
	CORSAllowlist []string          `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	DSN      string `json:"dsn"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	Dimension     int         `json:"dimension"`
	Timeout       int         `json:"timeout"`
	Data          interface{} `json:"data"`
	CacheSize     int         `json:"cache_size"`
	CacheTTLHours int         `json:"cache_ttl_hours"`
}

type EmbedWorkerConfig struct {
	Workers    int    `json:"workers"`
	QueueSize  int    `json:"queue_size"`
	DelayMS    int    `json:"delay_ms"`
	SweepCron  string `json:"sweep_cron"`
	SweepLimit int    `json:"sweep_limit"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
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
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.host or database.dsn is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider != "" {
		if cfg.AI.Model == "" {
			cfg.AI.Model = "gemini-embedding-001"
		}
		if cfg.AI.Dimension == 0 {
			cfg.AI.Dimension = 768
		}
		if cfg.AI.Timeout == 0 {
			cfg.AI.Timeout = 30
		}
		if cfg.AI.CacheSize == 0 {
			cfg.AI.CacheSize = 4096
		}
		if cfg.AI.CacheTTLHours == 0 {
			cfg.AI.CacheTTLHours = 2
		}
	}
	if cfg.EmbedWorker.Workers == 0 {
		cfg.EmbedWorker.Workers = 2
	}
	if cfg.EmbedWorker.QueueSize == 0 {
		cfg.EmbedWorker.QueueSize = 64
	}
	if cfg.EmbedWorker.DelayMS == 0 {
		cfg.EmbedWorker.DelayMS = 100
	}
	if cfg.EmbedWorker.SweepCron == "" {
		cfg.EmbedWorker.SweepCron = "*/5 * * * *"
	}
	if cfg.EmbedWorker.SweepLimit == 0 {
		cfg.EmbedWorker.SweepLimit = 20
	}
	return &cfg, nil
}
