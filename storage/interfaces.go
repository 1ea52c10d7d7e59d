package storage

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/nexus/core"
)

// Reservation is a successful, reversible increment of a user's tracked storage.
// It is returned by QuotaLedger.TryReserve and consumed by QuotaLedger.Release.
type Reservation struct {
	UserID   string
	Bytes    int64
	released atomic.Bool
}

// NewReservation creates a reservation handle. Ledger implementations call this
// after they have durably applied the increment.
func NewReservation(userID string, bytes int64) *Reservation {
	return &Reservation{UserID: userID, Bytes: bytes}
}

// Released reports whether the reservation has already been returned to the ledger.
func (r *Reservation) Released() bool {
	return r.released.Load()
}

// MarkReleased flips the reservation to released. It returns false if it was
// already released, which lets ledgers make Release idempotent.
func (r *Reservation) MarkReleased() bool {
	return r.released.CompareAndSwap(false, true)
}

// UnmarkReleased reverts MarkReleased after a failed release attempt.
func (r *Reservation) UnmarkReleased() {
	r.released.Store(false)
}

// QuotaLedger tracks cumulative bytes stored per user and enforces the quota limit.
// Implementations must be thread-safe and linearizable per user.
type QuotaLedger interface {
	// TryReserve atomically adds bytes to the user's total if the result stays within
	// the limit. Returns ErrQuotaExceeded without mutating state otherwise.
	TryReserve(ctx context.Context, userID string, bytes int64) (*Reservation, error)

	// Release subtracts a previously successful reservation.
	// Releasing an already released reservation is a no-op.
	// Returns ErrInvalidRelease if the ledger holds fewer bytes than the reservation.
	Release(ctx context.Context, reservation *Reservation) error

	// Usage reports the user's current total. Unknown users have zero usage.
	Usage(ctx context.Context, userID string) (core.Usage, error)

	// Limit returns the per-user byte limit enforced by the ledger.
	Limit() int64
}

// DocumentStore persists chunk records of ingested files.
// Implementations must be thread-safe and support concurrent access.
type DocumentStore interface {
	// WriteChunks writes all chunk records of one file as a single unit.
	// Either every record becomes visible or none does.
	// Returns ErrDuplicateKey if the file already exists for the user.
	WriteChunks(ctx context.Context, records []*core.ChunkRecord) error

	// GetChunks returns the chunks of a complete file ordered by chunk index.
	// Returns ErrNotFound if the file does not exist.
	GetChunks(ctx context.Context, userID, filename string) ([]*core.ChunkRecord, error)

	// ListFiles returns the manifests of the user's complete files.
	ListFiles(ctx context.Context, userID string) ([]*core.FileManifest, error)

	// Close releases resources held by the store.
	Close() error
}
