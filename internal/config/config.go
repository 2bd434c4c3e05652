package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port         int              `json:"port"`
	DataDir      string           `json:"data_dir"`
	OutputDir    string           `json:"output_dir"`
	LogConfig    logger.LogConfig `json:"log_config"`
	Database     DatabaseConfig   `json:"database"`
	AI           AIConfig         `json:"ai"`
	Chunking     ChunkingConfig   `json:"chunking"`
	Store        StoreConfig      `json:"store"`
	FileStore    FileStoreConfig  `json:"file_store"`
	CORSAllow    []string         `json:"cors_allow"`
	DeckKeepDays int              `json:"deck_keep_days"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	EmbedProvider  string      `json:"embed_provider"`
	Data           interface{} `json:"data"`
	ChatModel      string      `json:"chat_model"`
	EmbedModel     string      `json:"embed_model"`
	EmbedDimension int         `json:"embed_dimension"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	CacheSize      int         `json:"cache_size"`
	CacheTTLHours  int         `json:"cache_ttl_hours"`
}

type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

type StoreConfig struct {
	BatchSize int `json:"batch_size"`
	TopK      int `json:"top_k"`
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
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.DataDir + "/generated_presentations"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = cfg.AI.Provider
	}
	if cfg.AI.ChatModel == "" || cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.chat_model and ai.embed_model are required")
	}
	if cfg.AI.EmbedDimension == 0 {
		return nil, fmt.Errorf("ai.embed_dimension is required (must match the embed model)")
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLHours == 0 {
		cfg.AI.CacheTTLHours = 24
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 800
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 150
	}
	if cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return nil, fmt.Errorf("chunking.chunk_overlap must be smaller than chunk_size")
	}
	if cfg.Store.BatchSize == 0 {
		cfg.Store.BatchSize = 50
	}
	if cfg.Store.TopK == 0 {
		cfg.Store.TopK = 10
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		cfg.FileStore.Data = map[string]interface{}{"dir": cfg.DataDir}
	}
	if cfg.DeckKeepDays == 0 {
		cfg.DeckKeepDays = 30
	}
	return &cfg, nil
}
