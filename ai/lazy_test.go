package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constEmbedder struct {
	vector []float32
}

func (c *constEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.vector, nil
}

func (c *constEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vector
	}
	return out, nil
}

func TestLazyEmbedder_InitializesOnce(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazyEmbedder(func(ctx context.Context) (Embedder, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &constEmbedder{vector: []float32{1, 2, 3}}, nil
	})
	assert.False(t, lazy.Ready())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vector, err := lazy.EmbedText(context.Background(), "x")
			assert.NoError(t, err)
			assert.Equal(t, []float32{1, 2, 3}, vector)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, lazy.Ready())

	vectors, err := lazy.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLazyEmbedder_RetriesAfterFailure(t *testing.T) {
	cause := errors.New("model download failed")
	var calls atomic.Int32
	lazy := NewLazyEmbedder(func(ctx context.Context) (Embedder, error) {
		if calls.Add(1) <= 2 {
			return nil, cause
		}
		return &constEmbedder{vector: []float32{0.5}}, nil
	})

	err := lazy.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.False(t, lazy.Ready())

	_, err = lazy.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, lazy.Initialize(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, lazy.Ready())
}
