package storage

import (
	"testing"
	"time"

	"github.com/poiesic/nexus/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRecordRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	record := &core.ChunkRecord{
		UserID:     "user-1",
		Filename:   "Quarterly Report.pdf",
		ChunkIndex: 7,
		Content:    "revenue grew — señor über 日本",
		Embedding:  []float32{0.25, -1.5, 3.125, 0},
		SizeBytes:  10_000_000,
		CreatedAt:  now,
	}

	decoded, err := UnmarshalChunkRecord(MarshalChunkRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestChunkRecord_EmptyEmbedding(t *testing.T) {
	record := &core.ChunkRecord{UserID: "u", Filename: "f.txt", CreatedAt: time.Unix(0, 0).UTC()}

	decoded, err := UnmarshalChunkRecord(MarshalChunkRecord(record))
	require.NoError(t, err)
	assert.Empty(t, decoded.Embedding)
	assert.Equal(t, "f.txt", decoded.Filename)
}

func TestUserQuotaRoundTrip(t *testing.T) {
	q := &core.UserQuota{
		UserID:            "65a1f0c2e4b0a1b2c3d4e5f6",
		TotalStorageBytes: core.QuotaLimit,
		UpdatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalUserQuota(MarshalUserQuota(q))
	require.NoError(t, err)
	assert.Equal(t, q, decoded)
}

func TestFileManifestRoundTrip(t *testing.T) {
	m := &core.FileManifest{
		UserID:     "user-1",
		Filename:   "notes.docx",
		ChunkCount: 3,
		SizeBytes:  4096,
		Dimensions: 384,
		Status:     core.FileStatusComplete,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalFileManifest(MarshalFileManifest(m))
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated chunk", MarshalChunkRecord(&core.ChunkRecord{
			UserID:    "user-1",
			Filename:  "a.txt",
			Content:   "some content",
			Embedding: []float32{1, 2, 3},
		})[:12]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalChunkRecord(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)

			_, err = UnmarshalFileManifest(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestReservation_MarkReleased(t *testing.T) {
	r := NewReservation("user-1", 100)
	assert.False(t, r.Released())

	assert.True(t, r.MarkReleased())
	assert.True(t, r.Released())
	assert.False(t, r.MarkReleased(), "second release must not succeed")

	r.UnmarkReleased()
	assert.False(t, r.Released())
}
