package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/nexus/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// probeText is embedded once at startup to learn or verify the model dimension.
const probeText = "dimension probe"

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	// Wrap in langchaingo embedder
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:   embedder,
		dimensions: config.Dimensions,
		logger:     slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
// No request is made until the first embedding.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// NewFactory returns an ai.EmbedderFactory suitable for ai.NewLazyEmbedder.
// The factory issues a probe request so an unreachable service or a model of the
// wrong dimension fails initialization instead of the first ingestion.
func NewFactory(config *ai.Config) ai.EmbedderFactory {
	return func(ctx context.Context) (ai.Embedder, error) {
		e, err := newEmbedder(config)
		if err != nil {
			return nil, err
		}
		if err := e.probe(ctx); err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Dimensions returns the vector length produced by the model, or 0 if not yet known.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) probe(ctx context.Context) error {
	vector, err := e.EmbedText(ctx, probeText)
	if err != nil {
		return err
	}
	if e.dimensions != 0 && len(vector) != e.dimensions {
		return fmt.Errorf("%w: model returned %d, configured %d", ai.ErrDimensionMismatch, len(vector), e.dimensions)
	}
	e.dimensions = len(vector)
	e.logger.Info("embedding model ready", "dimensions", e.dimensions)
	return nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		e.logger.Warn("embedder returned empty result")
		return nil, fmt.Errorf("%w: empty embedding", ai.ErrEmbedderUnavailable)
	}
	if err := e.checkDimensions(vectors[0]); err != nil {
		return nil, err
	}

	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ai.ErrEmbedderUnavailable, len(vectors), len(texts))
	}
	for _, vector := range vectors {
		if err := e.checkDimensions(vector); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// checkDimensions rejects vectors whose length differs from the known model dimension.
// Before the dimension is known every length is accepted.
func (e *Embedder) checkDimensions(vector []float32) error {
	if e.dimensions != 0 && len(vector) != e.dimensions {
		e.logger.Error("embedding dimension changed", "got", len(vector), "expected", e.dimensions)
		return fmt.Errorf("%w: model returned %d, expected %d", ai.ErrDimensionMismatch, len(vector), e.dimensions)
	}
	return nil
}
