// Package config loads nexus settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/poiesic/nexus/ai"
	"gopkg.in/yaml.v3"
)

// Config holds the nexus configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig holds Badger settings.
type DatabaseConfig struct {
	Path           string `yaml:"path"`
	InMemory       bool   `yaml:"in_memory"`
	MemTableSizeMB int64  `yaml:"memtable_size_mb"` // 0 keeps the Badger default
}

// EmbeddingConfig holds the embedding service settings.
type EmbeddingConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Token      string `yaml:"token"`
	Dimensions int    `yaml:"dimensions"` // 0 = learn from the model
}

// IngestionConfig holds pipeline settings.
type IngestionConfig struct {
	ChunkSize         int `yaml:"chunk_size"`
	PoolSize          int `yaml:"pool_size"`
	EmbedConcurrency  int `yaml:"embed_concurrency"`
	EmbedAttempts     int `yaml:"embed_attempts"`
	EmbedRetryDelayMs int `yaml:"embed_retry_delay_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	defaults := ai.DefaultConfig()
	if c.Embedding.Host == "" {
		c.Embedding.Host = defaults.EmbeddingHost
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaults.EmbeddingModel
	}
	if c.Embedding.Token == "" {
		c.Embedding.Token = defaults.Token
	}
	if c.Ingestion.ChunkSize <= 0 {
		c.Ingestion.ChunkSize = 500
	}
	if c.Ingestion.EmbedAttempts <= 0 {
		c.Ingestion.EmbedAttempts = 1
	}
	if c.Ingestion.EmbedRetryDelayMs <= 0 {
		c.Ingestion.EmbedRetryDelayMs = 500
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Database.Path == "" && !c.Database.InMemory {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	if c.Database.MemTableSizeMB < 0 {
		return fmt.Errorf("database.memtable_size_mb cannot be negative, got %d", c.Database.MemTableSizeMB)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if c.Ingestion.PoolSize < 0 {
		return fmt.Errorf("ingestion.pool_size cannot be negative, got %d", c.Ingestion.PoolSize)
	}
	if c.Ingestion.EmbedConcurrency < 0 {
		return fmt.Errorf("ingestion.embed_concurrency cannot be negative, got %d", c.Ingestion.EmbedConcurrency)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// AIConfig converts the embedding section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithToken(c.Embedding.Token),
		ai.WithDimensions(c.Embedding.Dimensions),
	)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
