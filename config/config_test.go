package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/nexus
  memtable_size_mb: 128
embedding:
  host: http://embedder:8080
  model: nomic-embed-text
  dimensions: 768
ingestion:
  chunk_size: 1000
  embed_concurrency: 1
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/nexus", cfg.Database.Path)
	assert.Equal(t, int64(128), cfg.Database.MemTableSizeMB)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 1000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 1, cfg.Ingestion.EmbedConcurrency)
	assert.Equal(t, 1, cfg.Ingestion.EmbedAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://embedder:8080/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "none", aiCfg.Token)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  in_memory: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.Host)
	assert.Equal(t, "all-minilm", cfg.Embedding.Model)
	assert.Equal(t, 500, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 500, cfg.Ingestion.EmbedRetryDelayMs)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("NEXUS_TEST_TOKEN", "secret")
	path := writeConfig(t, `
database:
  path: ${NEXUS_TEST_DB:-/tmp/nexus}
embedding:
  token: ${NEXUS_TEST_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/nexus", cfg.Database.Path)
	assert.Equal(t, "secret", cfg.Embedding.Token)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: [not, a, map"))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = Load(writeConfig(t, "logging:\n  level: debug\n"))
	assert.ErrorContains(t, err, "database.path is required")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "negative memtable", mutate: func(c *Config) { c.Database.MemTableSizeMB = -1 }, wantErr: "memtable_size_mb"},
		{name: "missing model", mutate: func(c *Config) { c.Embedding.Model = "" }, wantErr: "EmbeddingModel is required"},
		{name: "negative dimensions", mutate: func(c *Config) { c.Embedding.Dimensions = -3 }, wantErr: "Dimensions cannot be negative"},
		{name: "negative pool", mutate: func(c *Config) { c.Ingestion.PoolSize = -1 }, wantErr: "pool_size"},
		{name: "negative embed concurrency", mutate: func(c *Config) { c.Ingestion.EmbedConcurrency = -1 }, wantErr: "embed_concurrency"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: "logging.level"},
		{name: "upper case log level", mutate: func(c *Config) { c.Logging.Level = "WARN" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.Path = "/data"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
