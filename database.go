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


package nexus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/nexus/ai"
	"github.com/poiesic/nexus/ai/openai"
	"github.com/poiesic/nexus/core"
	"github.com/poiesic/nexus/ingestion"
	"github.com/poiesic/nexus/metrics"
	"github.com/poiesic/nexus/storage"
	"github.com/poiesic/nexus/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
)

type Database struct {
	backend   *badger.Backend
	ledger    *badger.QuotaLedger
	documents *badger.DocumentStore
	embedder  ai.Embedder
	pipeline  *ingestion.Pipeline
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig        *ai.Config
	embedder        ai.Embedder
	inMemory        bool
	backendOptions  []badger.BackendOption
	quotaOptions    []badger.QuotaOption
	pipelineOptions []ingestion.Option
	registerer      prometheus.Registerer
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithEmbedder replaces the embedding service client. The AI config is ignored.
func WithEmbedder(embedder ai.Embedder) DatabaseOption {
	return func(o *databaseOptions) {
		o.embedder = embedder
	}
}

// WithInMemory keeps all data in memory. The file path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithBackendOptions tunes the underlying Badger database.
func WithBackendOptions(opts ...badger.BackendOption) DatabaseOption {
	return func(o *databaseOptions) {
		o.backendOptions = append(o.backendOptions, opts...)
	}
}

// WithQuotaLimit overrides the per-user quota limit.
func WithQuotaLimit(limit int64) DatabaseOption {
	return func(o *databaseOptions) {
		o.quotaOptions = append(o.quotaOptions, badger.WithLimit(limit))
	}
}

// WithPipelineOptions configures the ingestion pipeline.
func WithPipelineOptions(opts ...ingestion.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.pipelineOptions = append(o.pipelineOptions, opts...)
	}
}

// WithMetricsRegisterer registers pipeline metrics with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) DatabaseOption {
	return func(o *databaseOptions) {
		o.registerer = reg
	}
}

// NewDatabase opens the database at filePath and wires the ingestion pipeline.
// The embedding model is not contacted until the first ingestion or query.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	embedder := options.embedder
	if embedder == nil {
		if err := options.aiConfig.Validate(); err != nil {
			return nil, err
		}
		embedder = ai.NewLazyEmbedder(openai.NewFactory(options.aiConfig))
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory, options.backendOptions...)
	if err != nil {
		return nil, err
	}

	ledger := badger.NewQuotaLedger(backend, options.quotaOptions...)
	documents := badger.NewDocumentStore(backend)

	pipelineOpts := options.pipelineOptions
	if options.registerer != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithMetrics(metrics.New(options.registerer)))
	}
	pipeline, err := ingestion.NewPipeline(ledger, documents, embedder, pipelineOpts...)
	if err != nil {
		documents.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:   backend,
		ledger:    ledger,
		documents: documents,
		embedder:  embedder,
		pipeline:  pipeline,
		logger:    slog.Default().With("component", "database"),
	}, nil
}

func (db *Database) Close() error {
	db.pipeline.Release()

	if err := db.documents.Close(); err != nil {
		db.logger.Error("error closing document store", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Ingest stores a file for a user. See ingestion.Pipeline.Ingest.
func (db *Database) Ingest(ctx context.Context, userID, filename string, data []byte) (*ingestion.Result, error) {
	return db.pipeline.Ingest(ctx, userID, filename, data)
}

// Submit queues a file for ingestion. See ingestion.Pipeline.Submit.
func (db *Database) Submit(ctx context.Context, userID, filename string, data []byte) (<-chan ingestion.Outcome, error) {
	return db.pipeline.Submit(ctx, userID, filename, data)
}

// Usage reports a user's stored bytes and quota limit.
func (db *Database) Usage(ctx context.Context, userID string) (core.Usage, error) {
	return db.ledger.Usage(ctx, userID)
}

// ListFiles returns the user's ingested files ordered by name.
func (db *Database) ListFiles(ctx context.Context, userID string) ([]*core.FileManifest, error) {
	return db.documents.ListFiles(ctx, userID)
}

// GetChunks returns the chunks of an ingested file ordered by index.
func (db *Database) GetChunks(ctx context.Context, userID, filename string) ([]*core.ChunkRecord, error) {
	return db.documents.GetChunks(ctx, userID, filename)
}

// EmbedQuery embeds text with the same model used for ingested chunks.
func (db *Database) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("query text cannot be empty")
	}
	vector, err := db.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbedderUnavailable, err)
	}
	return vector, nil
}

func (db *Database) QuotaLedger() storage.QuotaLedger {
	return db.ledger
}

func (db *Database) DocumentStore() storage.DocumentStore {
	return db.documents
}
