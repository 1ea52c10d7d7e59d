package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/nexus/storage"
)

const (
	// maxConflictRetries bounds how often a read-modify-write transaction is
	// replayed after losing a conflict to a concurrent writer.
	maxConflictRetries = 128
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// BackendOption adjusts the Badger options before the database is opened.
type BackendOption func(*badger.Options)

// WithMemTableSize sets the memtable size. Badger caps a single transaction at 15% of
// it, so this also bounds how many chunk bytes fit in one write transaction. In-memory
// databases additionally reject any single value larger than the value threshold.
func WithMemTableSize(size int64) BackendOption {
	return func(o *badger.Options) {
		o.MemTableSize = size
		if limit := size * 15 / 100; o.ValueThreshold > limit {
			o.ValueThreshold = limit
		}
	}
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool, backendOpts ...BackendOption) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None
	for _, opt := range backendOpts {
		opt(&opts)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction; fn is responsible for committing it.
// The transaction is automatically discarded when fn returns.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// UpdateWithRetry runs fn in a read-write transaction and commits it. If the commit
// loses a conflict against a concurrent transaction that wrote a key fn read, the whole
// transaction is replayed on a fresh snapshot. This turns fn into a compare-and-swap.
func (b *Backend) UpdateWithRetry(fn func(tx *badger.Txn) error) error {
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err := b.WithTx(func(tx *badger.Txn) error {
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.logger.Debug("transaction conflict, retrying", "attempt", attempt)
	}
	return fmt.Errorf("%w: gave up after %d conflicts", storage.ErrTransactionFailed, maxConflictRetries)
}

// setAll writes entries in as few transactions as Badger allows, committing and
// starting a new transaction whenever the current one is full. It returns the keys
// that were committed, which may be a prefix of the input on error.
func (b *Backend) setAll(keys, values [][]byte) ([][]byte, error) {
	if b.db.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var committed [][]byte
	pending := make([][]byte, 0, len(keys))
	tx := b.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for i, key := range keys {
		err := tx.Set(key, values[i])
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := tx.Commit(); err != nil {
				return committed, err
			}
			committed = append(committed, pending...)
			pending = pending[:0]
			tx = b.db.NewTransaction(true)
			err = tx.Set(key, values[i])
		}
		if err != nil {
			return committed, err
		}
		pending = append(pending, key)
	}

	if err := tx.Commit(); err != nil {
		return committed, err
	}
	return append(committed, pending...), nil
}

// deleteAll removes keys, splitting the work across transactions like setAll.
func (b *Backend) deleteAll(keys [][]byte) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}

	tx := b.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, key := range keys {
		err := tx.Delete(key)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = b.db.NewTransaction(true)
			err = tx.Delete(key)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
