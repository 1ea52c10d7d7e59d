package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/nexus/core"
	"github.com/poiesic/nexus/storage"
)

// QuotaLedger implements storage.QuotaLedger for BadgerDB.
//
// Every mutation is a read-check-write inside one serializable transaction, so
// a reservation can never be granted against a stale total. Updates for the same
// user are additionally serialized in-process to keep conflict retries rare.
type QuotaLedger struct {
	backend *Backend
	limit   int64
	locks   sync.Map // userID -> *sync.Mutex
	now     func() time.Time
}

var _ storage.QuotaLedger = (*QuotaLedger)(nil)

// QuotaOption configures a QuotaLedger.
type QuotaOption func(*QuotaLedger)

// WithLimit overrides the per-user byte limit. Defaults to core.QuotaLimit.
func WithLimit(limit int64) QuotaOption {
	return func(l *QuotaLedger) {
		l.limit = limit
	}
}

// WithLedgerClock sets the clock used for UpdatedAt stamps.
func WithLedgerClock(now func() time.Time) QuotaOption {
	return func(l *QuotaLedger) {
		l.now = now
	}
}

// NewQuotaLedger creates a new QuotaLedger.
func NewQuotaLedger(backend *Backend, opts ...QuotaOption) *QuotaLedger {
	l := &QuotaLedger{
		backend: backend,
		limit:   core.QuotaLimit,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the per-user byte limit.
func (l *QuotaLedger) Limit() int64 {
	return l.limit
}

// TryReserve adds bytes to the user's total if the new total stays within the limit.
func (l *QuotaLedger) TryReserve(ctx context.Context, userID string, bytes int64) (*storage.Reservation, error) {
	if err := core.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if bytes < 0 {
		return nil, fmt.Errorf("%w: %d", storage.ErrInvalidAmount, bytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Checked up front so current+bytes below cannot overflow.
	if bytes > l.limit {
		return nil, fmt.Errorf("%w: %d bytes requested, limit is %d", storage.ErrQuotaExceeded, bytes, l.limit)
	}

	unlock := l.lock(userID)
	defer unlock()

	err := l.backend.UpdateWithRetry(func(tx *badger.Txn) error {
		quota, err := l.readQuota(tx, userID)
		if err != nil {
			return err
		}
		if quota.TotalStorageBytes+bytes > l.limit {
			return fmt.Errorf("%w: %d bytes used, %d requested, limit is %d",
				storage.ErrQuotaExceeded, quota.TotalStorageBytes, bytes, l.limit)
		}
		quota.TotalStorageBytes += bytes
		quota.UpdatedAt = l.now()
		return tx.Set(makeQuotaKey(userID), storage.MarshalUserQuota(quota))
	})
	if err != nil {
		return nil, err
	}
	return storage.NewReservation(userID, bytes), nil
}

// Release subtracts a reservation from the user's total. Releasing twice is a no-op.
func (l *QuotaLedger) Release(ctx context.Context, reservation *storage.Reservation) error {
	if reservation == nil {
		return fmt.Errorf("%w: nil reservation", storage.ErrInvalidRelease)
	}
	if !reservation.MarkReleased() {
		return nil
	}

	unlock := l.lock(reservation.UserID)
	defer unlock()

	err := l.backend.UpdateWithRetry(func(tx *badger.Txn) error {
		quota, err := l.readQuota(tx, reservation.UserID)
		if err != nil {
			return err
		}
		if quota.TotalStorageBytes < reservation.Bytes {
			return fmt.Errorf("%w: %d bytes held, releasing %d",
				storage.ErrInvalidRelease, quota.TotalStorageBytes, reservation.Bytes)
		}
		quota.TotalStorageBytes -= reservation.Bytes
		quota.UpdatedAt = l.now()
		return tx.Set(makeQuotaKey(reservation.UserID), storage.MarshalUserQuota(quota))
	})
	if err != nil {
		reservation.UnmarkReleased()
		return err
	}
	return nil
}

// Usage reports the user's current total.
func (l *QuotaLedger) Usage(ctx context.Context, userID string) (core.Usage, error) {
	if err := core.ValidateUserID(userID); err != nil {
		return core.Usage{}, err
	}

	var quota *core.UserQuota
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		quota, err = l.readQuota(tx, userID)
		return err
	}, false)
	if err != nil {
		return core.Usage{}, err
	}

	return core.Usage{
		UserID:     userID,
		UsedBytes:  quota.TotalStorageBytes,
		LimitBytes: l.limit,
	}, nil
}

// readQuota loads a user's ledger entry. Missing users start at zero.
func (l *QuotaLedger) readQuota(tx *badger.Txn, userID string) (*core.UserQuota, error) {
	item, err := tx.Get(makeQuotaKey(userID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return &core.UserQuota{UserID: userID}, nil
		}
		return nil, err
	}

	var quota *core.UserQuota
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		quota, unmarshalErr = storage.UnmarshalUserQuota(val)
		return unmarshalErr
	})
	return quota, err
}

func (l *QuotaLedger) lock(userID string) func() {
	mu, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
