package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/nexus/ai"
	"github.com/poiesic/nexus/chunker"
	"github.com/poiesic/nexus/core"
	"github.com/poiesic/nexus/metrics"
	"github.com/poiesic/nexus/parser"
	"github.com/poiesic/nexus/storage"
)

// Result describes a successfully ingested file.
type Result struct {
	UserID     string
	Filename   string
	ChunkCount int
	SizeBytes  int64
	Dimensions int
}

// Outcome is delivered by Submit when an ingestion reaches a terminal state.
// Exactly one of Result and Err is set.
type Outcome struct {
	Result *Result
	Err    error
}

// Pipeline orchestrates parsing, chunking, embedding, quota reservation and storage
// of uploaded files.
type Pipeline struct {
	ledger    storage.QuotaLedger
	documents storage.DocumentStore
	embedder  ai.Embedder

	ingestPool *ants.Pool
	embedPool  *ants.Pool

	poolSize         int
	embedConcurrency int
	chunkSize        int
	embedAttempts    int
	embedBaseDelay   time.Duration

	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many Submit-ted ingestions run concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithEmbedConcurrency bounds the number of concurrent embedding calls across all
// ingestions. A value of 1 funnels every model call through a single worker.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithEmbedConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.embedConcurrency = n
		return nil
	}
}

// WithChunkSize sets the chunker target size in bytes.
// Default is chunker.DefaultTargetSize.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		p.chunkSize = size
		return nil
	}
}

// WithEmbedRetry retries each failed embedding call with exponential backoff.
// Default is a single attempt.
func WithEmbedRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return ai.ErrInvalidMaxAttempts
		}
		p.embedAttempts = maxAttempts
		p.embedBaseDelay = baseDelay
		return nil
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithClock sets the clock used to stamp chunk records.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		p.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	ledger storage.QuotaLedger,
	documents storage.DocumentStore,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if ledger == nil {
		return nil, ErrQuotaLedgerRequired
	}
	if documents == nil {
		return nil, ErrDocumentStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		ledger:           ledger,
		documents:        documents,
		embedder:         embedder,
		poolSize:         poolSize,
		embedConcurrency: runtime.NumCPU(),
		chunkSize:        chunker.DefaultTargetSize,
		embedAttempts:    1,
		now:              func() time.Time { return time.Now().UTC() },
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	panicHandler := ants.WithPanicHandler(func(v any) {
		p.logger.Error("worker panic", "panic", v)
	})

	ingestPool, err := ants.NewPool(p.poolSize, panicHandler)
	if err != nil {
		return nil, err
	}
	embedPool, err := ants.NewPool(p.embedConcurrency, panicHandler)
	if err != nil {
		ingestPool.Release()
		return nil, err
	}
	p.ingestPool = ingestPool
	p.embedPool = embedPool

	return p, nil
}

// Submit runs Ingest on the pipeline's worker pool. The returned channel receives
// exactly one Outcome and is then closed. It is buffered, so the ingestion
// completes even if the caller never reads it.
func (p *Pipeline) Submit(ctx context.Context, userID, filename string, data []byte) (<-chan Outcome, error) {
	out := make(chan Outcome, 1)
	err := p.ingestPool.Submit(func() {
		defer close(out)
		result, err := p.Ingest(ctx, userID, filename, data)
		out <- Outcome{Result: result, Err: err}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ingest runs one file through every stage and returns either a Result or an *Error.
//
// Cancellation of ctx is ignored once Ingest starts; its values are still passed to
// the embedder and stores. If storing fails after quota was reserved, the reservation
// is released before returning.
func (p *Pipeline) Ingest(ctx context.Context, userID, filename string, data []byte) (*Result, error) {
	if err := core.ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	sizeBytes := int64(len(data))
	logger := p.logger.With("user", userID, "file", filename, "size", sizeBytes)

	fail := func(stage Stage, kind Kind, err error) (*Result, error) {
		logger.Warn("ingestion failed", "stage", stage, "kind", kind, "err", err)
		p.metrics.ObserveIngestion(kind.String(), sizeBytes, 0)
		return nil, &Error{Stage: stage, Kind: kind, Err: err}
	}

	// Parsing
	start := time.Now()
	text, err := parser.Parse(data, parser.ExtensionOf(filename))
	p.metrics.ObserveStage(StageParsing.String(), time.Since(start))
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return fail(StageParsing, KindUnsupportedFormat, err)
		}
		return fail(StageParsing, KindParseError, err)
	}

	// Chunking
	start = time.Now()
	chunks := chunker.Chunk(text, p.chunkSize)
	p.metrics.ObserveStage(StageChunking.String(), time.Since(start))
	if len(chunks) == 0 {
		return fail(StageChunking, KindParseError, ErrNoContent)
	}
	logger.Debug("chunked file", "chunks", len(chunks))

	// Embedding
	start = time.Now()
	vectors, err := p.embedAll(ctx, chunks)
	p.metrics.ObserveStage(StageEmbedding.String(), time.Since(start))
	if err != nil {
		return fail(StageEmbedding, KindEmbeddingUnavailable, err)
	}

	// Reserving quota
	start = time.Now()
	reservation, err := p.ledger.TryReserve(ctx, userID, sizeBytes)
	p.metrics.ObserveStage(StageReservingQuota.String(), time.Since(start))
	if err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			return fail(StageReservingQuota, KindQuotaExceeded, err)
		}
		return fail(StageReservingQuota, KindStoreError, err)
	}

	// Storing
	createdAt := p.now()
	records := make([]*core.ChunkRecord, len(chunks))
	for i, content := range chunks {
		records[i] = &core.ChunkRecord{
			UserID:     userID,
			Filename:   filename,
			ChunkIndex: i,
			Content:    content,
			Embedding:  vectors[i],
			SizeBytes:  sizeBytes,
			CreatedAt:  createdAt,
		}
	}

	start = time.Now()
	err = p.documents.WriteChunks(ctx, records)
	p.metrics.ObserveStage(StageStoring.String(), time.Since(start))
	if err != nil {
		releaseErr := p.ledger.Release(ctx, reservation)
		p.metrics.ObserveRelease(releaseErr)
		if releaseErr != nil {
			logger.Error("failed to release quota after store failure",
				"bytes", reservation.Bytes, "err", releaseErr)
			err = errors.Join(err, releaseErr)
		}
		return fail(StageStoring, KindStoreError, err)
	}

	result := &Result{
		UserID:     userID,
		Filename:   filename,
		ChunkCount: len(records),
		SizeBytes:  sizeBytes,
		Dimensions: len(vectors[0]),
	}
	logger.Info("ingested file", "chunks", result.ChunkCount, "dimensions", result.Dimensions)
	p.metrics.ObserveIngestion("success", sizeBytes, result.ChunkCount)
	return result, nil
}

// embedAll embeds every chunk on the embed pool and checks that all vectors share
// one non-zero dimension.
func (p *Pipeline) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		err := p.embedPool.Submit(func() {
			defer wg.Done()
			vectors[i], errs[i] = p.embedOne(ctx, chunk)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	dims := len(vectors[0])
	for i, vector := range vectors {
		if len(vector) == 0 {
			return nil, fmt.Errorf("chunk %d: %w: empty embedding", i, ai.ErrEmbedderUnavailable)
		}
		if len(vector) != dims {
			return nil, fmt.Errorf("chunk %d: %w: got %d, expected %d", i, ai.ErrDimensionMismatch, len(vector), dims)
		}
	}
	return vectors, nil
}

func (p *Pipeline) embedOne(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := ai.RetryWithBackoff(ctx, func() error {
		start := time.Now()
		v, err := p.embedder.EmbedText(ctx, text)
		p.metrics.ObserveEmbedding(err, time.Since(start))
		if err != nil {
			return err
		}
		vector = v
		return nil
	}, p.embedAttempts, p.embedBaseDelay)
	return vector, err
}

// Release releases the worker pools. Ingestions already running finish, but the
// pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.ingestPool != nil {
		p.ingestPool.Release()
	}
	if p.embedPool != nil {
		p.embedPool.Release()
	}
}
