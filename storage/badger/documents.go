package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/nexus/core"
	"github.com/poiesic/nexus/storage"
)

// DocumentStore implements storage.DocumentStore for BadgerDB.
//
// A file is written in three steps: a pending manifest claims the filename,
// chunks are written in as many transactions as Badger needs, and the manifest
// is flipped to complete. Readers only see files with a complete manifest, so a
// crash or failure in between never exposes a partial file. Failed writes are
// rolled back by deleting whatever was committed.
type DocumentStore struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(backend *Backend) *DocumentStore {
	return &DocumentStore{backend: backend}
}

// Close is a no-op; the backend is owned by the caller.
func (s *DocumentStore) Close() error {
	return nil
}

// WriteChunks writes every chunk of one file or none of them.
func (s *DocumentStore) WriteChunks(ctx context.Context, records []*core.ChunkRecord) error {
	if err := core.ValidateChunkBatch(records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	first := records[0]
	manifest := &core.FileManifest{
		UserID:     first.UserID,
		Filename:   first.Filename,
		ChunkCount: len(records),
		SizeBytes:  first.SizeBytes,
		Dimensions: len(first.Embedding),
		Status:     core.FileStatusPending,
		CreatedAt:  first.CreatedAt,
	}
	fileKey := makeFileKey(first.UserID, first.Filename)

	if err := s.claim(fileKey, manifest); err != nil {
		return err
	}

	keys := make([][]byte, len(records))
	values := make([][]byte, len(records))
	for i, record := range records {
		keys[i] = makeChunkKey(record.UserID, record.Filename, record.ChunkIndex)
		values[i] = storage.MarshalChunkRecord(record)
	}

	written, err := s.backend.setAll(keys, values)
	if err == nil {
		manifest.Status = core.FileStatusComplete
		err = s.backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Set(fileKey, storage.MarshalFileManifest(manifest)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	}
	if err != nil {
		s.backend.logger.Warn("rolling back partial file write",
			"user", first.UserID, "filename", first.Filename, "written", len(written), "err", err)
		cleanupErr := s.backend.deleteAll(append(written, fileKey))
		return errors.Join(fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err), cleanupErr)
	}
	return nil
}

// claim stores a pending manifest unless the file already exists.
func (s *DocumentStore) claim(fileKey []byte, manifest *core.FileManifest) error {
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(fileKey)
		if err == nil {
			return fmt.Errorf("%w: %s/%s", storage.ErrDuplicateKey, manifest.UserID, manifest.Filename)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		if err := tx.Set(fileKey, storage.MarshalFileManifest(manifest)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	// Losing the race means a concurrent writer claimed the same file.
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %s/%s", storage.ErrDuplicateKey, manifest.UserID, manifest.Filename)
	}
	return err
}

// GetChunks returns the chunks of a complete file ordered by chunk index.
func (s *DocumentStore) GetChunks(ctx context.Context, userID, filename string) ([]*core.ChunkRecord, error) {
	var results []*core.ChunkRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		manifest, err := readManifest(tx, makeFileKey(userID, filename))
		if err != nil {
			return err
		}
		if manifest == nil || manifest.Status != core.FileStatusComplete ||
			manifest.UserID != userID || manifest.Filename != filename {
			return storage.ErrNotFound
		}

		prefix := makePartialChunkKey(userID, filename)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		results = make([]*core.ChunkRecord, 0, manifest.ChunkCount)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var record *core.ChunkRecord
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				record, unmarshalErr = storage.UnmarshalChunkRecord(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if record.UserID != userID || record.Filename != filename {
				continue
			}
			results = append(results, record)
		}

		if len(results) != manifest.ChunkCount {
			return fmt.Errorf("file %s/%s has %d chunks, manifest expects %d",
				userID, filename, len(results), manifest.ChunkCount)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListFiles returns the user's complete files sorted by filename.
func (s *DocumentStore) ListFiles(ctx context.Context, userID string) ([]*core.FileManifest, error) {
	var results []*core.FileManifest
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialFileKey(userID)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var manifest *core.FileManifest
			if err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				manifest, unmarshalErr = storage.UnmarshalFileManifest(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			if manifest.UserID != userID || manifest.Status != core.FileStatusComplete {
				continue
			}
			results = append(results, manifest)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.FileManifest) int {
		return strings.Compare(a.Filename, b.Filename)
	})
	return results, nil
}

func readManifest(tx *badger.Txn, key []byte) (*core.FileManifest, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var manifest *core.FileManifest
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		manifest, unmarshalErr = storage.UnmarshalFileManifest(val)
		return unmarshalErr
	})
	return manifest, err
}
