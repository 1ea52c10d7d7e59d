package badger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/nexus/core"
	"github.com/poiesic/nexus/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeChunks(userID, filename string, contents ...string) []*core.ChunkRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	records := make([]*core.ChunkRecord, len(contents))
	for i, content := range contents {
		records[i] = &core.ChunkRecord{
			UserID:     userID,
			Filename:   filename,
			ChunkIndex: i,
			Content:    content,
			Embedding:  []float32{float32(i), 0.5, -0.5},
			SizeBytes:  1234,
			CreatedAt:  now,
		}
	}
	return records
}

func newTestStores(t *testing.T, opts ...BackendOption) (*QuotaLedger, *DocumentStore) {
	t.Helper()
	ledger, documents, backend, err := NewMemoryStores(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		documents.Close()
		backend.Close()
	})
	return ledger, documents
}

func TestDocumentStore_WriteAndGetChunks(t *testing.T) {
	_, store := newTestStores(t)
	ctx := context.Background()

	records := makeChunks("user", "notes.txt", "first", "second", "third")
	require.NoError(t, store.WriteChunks(ctx, records))

	got, err := store.GetChunks(ctx, "user", "notes.txt")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, record := range got {
		assert.Equal(t, i, record.ChunkIndex)
		assert.Equal(t, records[i].Content, record.Content)
		assert.Equal(t, records[i].Embedding, record.Embedding)
		assert.Equal(t, int64(1234), record.SizeBytes)
		assert.True(t, records[i].CreatedAt.Equal(record.CreatedAt))
	}
}

func TestDocumentStore_GetChunks_OrdersPastByteBoundary(t *testing.T) {
	_, store := newTestStores(t)
	ctx := context.Background()

	contents := make([]string, 300)
	for i := range contents {
		contents[i] = fmt.Sprintf("chunk-%d", i)
	}
	require.NoError(t, store.WriteChunks(ctx, makeChunks("user", "long.txt", contents...)))

	got, err := store.GetChunks(ctx, "user", "long.txt")
	require.NoError(t, err)
	require.Len(t, got, 300)
	for i, record := range got {
		assert.Equal(t, i, record.ChunkIndex)
	}
}

func TestDocumentStore_GetChunks_NotFound(t *testing.T) {
	_, store := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, store.WriteChunks(ctx, makeChunks("alice", "a.txt", "x")))

	tests := []struct {
		name     string
		userID   string
		filename string
	}{
		{name: "unknown file", userID: "alice", filename: "b.txt"},
		{name: "other user", userID: "bob", filename: "a.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.GetChunks(ctx, tt.userID, tt.filename)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestDocumentStore_DuplicateFilename(t *testing.T) {
	_, store := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, store.WriteChunks(ctx, makeChunks("user", "dup.txt", "one")))

	err := store.WriteChunks(ctx, makeChunks("user", "dup.txt", "two", "three"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetChunks(ctx, "user", "dup.txt")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Content)

	// Same filename under another user is a different file
	require.NoError(t, store.WriteChunks(ctx, makeChunks("other", "dup.txt", "mine")))
}

func TestDocumentStore_ConcurrentDuplicateWrites(t *testing.T) {
	_, store := newTestStores(t)
	ctx := context.Background()

	const writers = 10
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.WriteChunks(ctx, makeChunks("user", "race.txt", fmt.Sprintf("writer-%d", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	}
	assert.Equal(t, 1, succeeded)

	got, err := store.GetChunks(ctx, "user", "race.txt")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDocumentStore_InvalidBatchWritesNothing(t *testing.T) {
	_, store := newTestStores(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		records func() []*core.ChunkRecord
	}{
		{name: "empty", records: func() []*core.ChunkRecord { return nil }},
		{name: "gap in indices", records: func() []*core.ChunkRecord {
			r := makeChunks("user", "bad.txt", "a", "b")
			r[1].ChunkIndex = 2
			return r
		}},
		{name: "missing embedding", records: func() []*core.ChunkRecord {
			r := makeChunks("user", "bad.txt", "a", "b")
			r[1].Embedding = nil
			return r
		}},
		{name: "mixed dimensions", records: func() []*core.ChunkRecord {
			r := makeChunks("user", "bad.txt", "a", "b")
			r[1].Embedding = []float32{1}
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.WriteChunks(ctx, tt.records())
			assert.ErrorIs(t, err, core.ErrInvalidChunkBatch)

			_, err = store.GetChunks(ctx, "user", "bad.txt")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestDocumentStore_SplitTransactions(t *testing.T) {
	_, store := newTestStores(t, WithMemTableSize(1<<20))
	ctx := context.Background()

	// ~600KB of chunks against a ~150KB transaction cap
	contents := make([]string, 30)
	for i := range contents {
		contents[i] = strings.Repeat(string(rune('a'+i%26)), 20*1024)
	}
	require.NoError(t, store.WriteChunks(ctx, makeChunks("user", "big.txt", contents...)))

	got, err := store.GetChunks(ctx, "user", "big.txt")
	require.NoError(t, err)
	require.Len(t, got, 30)
	for i, record := range got {
		assert.Equal(t, contents[i], record.Content)
	}
}

func TestDocumentStore_FailedWriteRollsBack(t *testing.T) {
	_, store := newTestStores(t, WithMemTableSize(1<<20))
	ctx := context.Background()

	// Leading chunks commit, the oversized last one cannot fit any transaction.
	contents := []string{
		strings.Repeat("a", 60*1024),
		strings.Repeat("b", 60*1024),
		strings.Repeat("c", 60*1024),
		strings.Repeat("d", 400*1024),
	}
	err := store.WriteChunks(ctx, makeChunks("user", "broken.txt", contents...))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrTransactionFailed)

	_, err = store.GetChunks(ctx, "user", "broken.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	files, err := store.ListFiles(ctx, "user")
	require.NoError(t, err)
	assert.Empty(t, files)

	// No leftover chunk keys
	err = store.backend.WithTx(func(tx *badger.Txn) error {
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := makePartialChunkKey("user", "broken.txt")
		iter.Seek(prefix)
		assert.False(t, iter.ValidForPrefix(prefix))
		return nil
	}, false)
	require.NoError(t, err)

	// The filename is free again
	require.NoError(t, store.WriteChunks(ctx, makeChunks("user", "broken.txt", "fine")))
}

func TestDocumentStore_ListFiles(t *testing.T) {
	_, store := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, store.WriteChunks(ctx, makeChunks("user", "b.txt", "x", "y")))
	require.NoError(t, store.WriteChunks(ctx, makeChunks("user", "a.pdf", "z")))
	require.NoError(t, store.WriteChunks(ctx, makeChunks("other", "c.docx", "w")))

	files, err := store.ListFiles(ctx, "user")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", files[0].Filename)
	assert.Equal(t, 1, files[0].ChunkCount)
	assert.Equal(t, "b.txt", files[1].Filename)
	assert.Equal(t, 2, files[1].ChunkCount)
	assert.Equal(t, 3, files[1].Dimensions)
	assert.Equal(t, core.FileStatusComplete, files[1].Status)

	files, err = store.ListFiles(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestKeys_OrderAndIsolation(t *testing.T) {
	assert.Less(t, string(makeChunkKey("u", "f", 1)), string(makeChunkKey("u", "f", 256)))
	assert.NotEqual(t, makeFileKey("ab", "c"), makeFileKey("a", "bc"))
	assert.True(t, strings.HasPrefix(string(makeChunkKey("u", "f", 7)), string(makePartialChunkKey("u", "f"))))
	assert.True(t, strings.HasPrefix(string(makeFileKey("u", "f")), string(makePartialFileKey("u"))))
	assert.Equal(t, "quota:u", string(makeQuotaKey("u")))
}
