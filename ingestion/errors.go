package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/nexus/storage"
)

var (
	// ErrQuotaLedgerRequired is returned when a quota ledger is not provided.
	ErrQuotaLedgerRequired = errors.New("quota ledger required")

	// ErrDocumentStoreRequired is returned when a document store is not provided.
	ErrDocumentStoreRequired = errors.New("document store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNoContent is returned when a file yields no text to chunk.
	ErrNoContent = errors.New("no extractable text")
)

// Stage identifies a step of the ingestion state machine.
type Stage int

const (
	StageParsing Stage = iota + 1
	StageChunking
	StageEmbedding
	StageReservingQuota
	StageStoring
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageParsing:
		return "parsing"
	case StageChunking:
		return "chunking"
	case StageEmbedding:
		return "embedding"
	case StageReservingQuota:
		return "reserving_quota"
	case StageStoring:
		return "storing"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Kind classifies why an ingestion failed.
type Kind int

const (
	KindUnsupportedFormat Kind = iota + 1
	KindParseError
	KindQuotaExceeded
	KindEmbeddingUnavailable
	KindStoreError
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindParseError:
		return "parse_error"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindEmbeddingUnavailable:
		return "embedding_unavailable"
	case KindStoreError:
		return "store_error"
	default:
		return "unknown"
	}
}

// Error is the failure result of an ingestion. Stage is the step that failed.
type Error struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingestion failed at %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the same file may succeed.
// Embedding and storage failures are transient; a duplicate filename is not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindEmbeddingUnavailable:
		return true
	case KindStoreError:
		return !errors.Is(e.Err, storage.ErrDuplicateKey)
	default:
		return false
	}
}

// KindOf returns the failure kind of err if it is, or wraps, an *Error.
func KindOf(err error) (Kind, bool) {
	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		return ingestErr.Kind, true
	}
	return 0, false
}
