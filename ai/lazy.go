package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// LazyEmbedder defers construction of the underlying Embedder until it is first used.
//
// Initialization runs under a mutex so concurrent first callers trigger the factory
// once. A failed initialization is not cached: the next call tries again.
type LazyEmbedder struct {
	factory EmbedderFactory
	logger  *slog.Logger

	mu       sync.Mutex
	embedder Embedder
}

var _ Embedder = (*LazyEmbedder)(nil)

// NewLazyEmbedder wraps factory in a LazyEmbedder.
func NewLazyEmbedder(factory EmbedderFactory) *LazyEmbedder {
	return &LazyEmbedder{
		factory: factory,
		logger:  slog.Default().With("component", "lazy-embedder"),
	}
}

// Initialize builds the underlying embedder now instead of on first use.
func (l *LazyEmbedder) Initialize(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

// Ready reports whether the underlying embedder has been built.
func (l *LazyEmbedder) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.embedder != nil
}

// EmbedText initializes the embedder if needed and embeds text.
func (l *LazyEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	embedder, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return embedder.EmbedText(ctx, text)
}

// EmbedTexts initializes the embedder if needed and embeds texts.
func (l *LazyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embedder, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return embedder.EmbedTexts(ctx, texts)
}

func (l *LazyEmbedder) get(ctx context.Context) (Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.embedder != nil {
		return l.embedder, nil
	}

	l.logger.Info("initializing embedder")
	embedder, err := l.factory(ctx)
	if err != nil {
		l.logger.Error("embedder initialization failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrEmbedderUnavailable, err)
	}
	l.embedder = embedder
	return embedder, nil
}
