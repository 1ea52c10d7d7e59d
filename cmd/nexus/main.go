// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/nexus"
	"github.com/poiesic/nexus/ai"
	"github.com/poiesic/nexus/ai/openai"
	"github.com/poiesic/nexus/config"
	"github.com/poiesic/nexus/ingestion"
	"github.com/poiesic/nexus/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	dbFlag := &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB database directory (overrides database.path)",
	}
	userFlag := &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User identifier",
		Required: true,
	}

	return &cli.App{
		Name:  "nexus",
		Usage: "Quota-enforced document ingestion for retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: "all-minilm",
			},
			&cli.StringFlag{
				Name:    "embedding-token",
				Usage:   "Embedding service API token",
				EnvVars: []string{"NEXUS_EMBEDDING_TOKEN"},
			},
			&cli.IntFlag{
				Name:  "embedding-dimensions",
				Usage: "Expected embedding dimension (0 = learn from the model)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Parse, chunk, embed and store a file",
				Action: ingestCommand,
				Flags: []cli.Flag{
					dbFlag,
					userFlag,
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "File to ingest (.txt, .pdf, .docx)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in bytes (overrides ingestion.chunk_size)",
					},
				},
			},
			{
				Name:   "usage",
				Usage:  "Show a user's storage usage",
				Action: usageCommand,
				Flags:  []cli.Flag{dbFlag, userFlag},
			},
			{
				Name:   "files",
				Usage:  "List a user's ingested files",
				Action: filesCommand,
				Flags:  []cli.Flag{dbFlag, userFlag},
			},
			{
				Name:   "chunks",
				Usage:  "Print the chunks of an ingested file",
				Action: chunksCommand,
				Flags: []cli.Flag{
					dbFlag,
					userFlag,
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Filename as it was ingested",
						Required: true,
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Embed a query string with the configured model",
				Action: embedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "text",
						Aliases:  []string{"t"},
						Usage:    "Text to embed",
						Required: true,
					},
				},
			},
		},
	}
}

// loadConfig reads --config if given and applies command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	if c.IsSet("db") {
		cfg.Database.Path = c.String("db")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if c.IsSet("embedding-token") {
		cfg.Embedding.Token = c.String("embedding-token")
	}
	if c.IsSet("embedding-dimensions") {
		cfg.Embedding.Dimensions = c.Int("embedding-dimensions")
	}
	if c.IsSet("chunk-size") {
		cfg.Ingestion.ChunkSize = c.Int("chunk-size")
	}
	return cfg, nil
}

func openDatabase(c *cli.Context) (*nexus.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithChunkSize(cfg.Ingestion.ChunkSize),
		ingestion.WithEmbedRetry(cfg.Ingestion.EmbedAttempts,
			time.Duration(cfg.Ingestion.EmbedRetryDelayMs)*time.Millisecond),
	}
	if cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	if cfg.Ingestion.EmbedConcurrency > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithEmbedConcurrency(cfg.Ingestion.EmbedConcurrency))
	}

	opts := []nexus.DatabaseOption{
		nexus.WithAIConfig(cfg.AIConfig()),
		nexus.WithPipelineOptions(pipelineOpts...),
	}
	if cfg.Database.InMemory {
		opts = append(opts, nexus.WithInMemory())
	}
	if cfg.Database.MemTableSizeMB > 0 {
		opts = append(opts, nexus.WithBackendOptions(badger.WithMemTableSize(cfg.Database.MemTableSizeMB<<20)))
	}

	db, err := nexus.NewDatabase(cfg.Database.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	path := c.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.Ingest(ctx, c.String("user"), filepath.Base(path), data)
	if err != nil {
		var ingestErr *ingestion.Error
		if errors.As(err, &ingestErr) && ingestErr.Retryable() {
			return fmt.Errorf("%w (retryable)", err)
		}
		return err
	}

	fmt.Fprintf(c.App.Writer, "Ingested %s: %d chunks, %d bytes, %d dimensions\n",
		result.Filename, result.ChunkCount, result.SizeBytes, result.Dimensions)
	return nil
}

func usageCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	usage, err := db.Usage(context.Background(), c.String("user"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "User: %s\nUsed: %d bytes\nLimit: %d bytes\nRemaining: %d bytes\n",
		usage.UserID, usage.UsedBytes, usage.LimitBytes, usage.Remaining())
	return nil
}

func filesCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := db.ListFiles(context.Background(), c.String("user"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(c.App.Writer, "No files")
		return nil
	}
	for _, f := range files {
		fmt.Fprintf(c.App.Writer, "%s\t%d bytes\t%d chunks\t%s\n",
			f.Filename, f.SizeBytes, f.ChunkCount, f.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func chunksCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	chunks, err := db.GetChunks(context.Background(), c.String("user"), c.String("name"))
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		fmt.Fprintf(c.App.Writer, "[%d] (%d dims) %s\n", chunk.ChunkIndex, len(chunk.Embedding), preview(chunk.Content, 80))
	}
	return nil
}

func embedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder := ai.NewLazyEmbedder(openai.NewFactory(aiConfig))
	vector, err := embedder.EmbedText(context.Background(), c.String("text"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Dimensions: %d\n", len(vector))
	fmt.Fprintf(c.App.Writer, "Vector: %v\n", vector)
	return nil
}

// preview shortens s to at most n runes on one line.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))
	if !c.IsSet("log-level") && c.String("config") != "" {
		if cfg, err := config.Load(c.String("config")); err == nil {
			levelStr = strings.ToLower(cfg.Logging.Level)
		}
	}

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
