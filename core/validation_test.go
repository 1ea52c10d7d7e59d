package core

import (
	"errors"
	"testing"
	"time"
)

func validChunk(index int) *ChunkRecord {
	return &ChunkRecord{
		UserID:     "user-1",
		Filename:   "notes.txt",
		ChunkIndex: index,
		Content:    "hello world",
		Embedding:  []float32{0.1, 0.2, 0.3},
		SizeBytes:  1000,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestValidateChunkRecord(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ChunkRecord) *ChunkRecord
		wantErr error
	}{
		{
			name:    "valid record",
			mutate:  func(r *ChunkRecord) *ChunkRecord { return r },
			wantErr: nil,
		},
		{
			name:    "nil record",
			mutate:  func(r *ChunkRecord) *ChunkRecord { return nil },
			wantErr: ErrInvalidChunkRecord,
		},
		{
			name: "empty user",
			mutate: func(r *ChunkRecord) *ChunkRecord {
				r.UserID = ""
				return r
			},
			wantErr: ErrEmptyUserID,
		},
		{
			name: "empty filename",
			mutate: func(r *ChunkRecord) *ChunkRecord {
				r.Filename = ""
				return r
			},
			wantErr: ErrEmptyFilename,
		},
		{
			name: "negative size",
			mutate: func(r *ChunkRecord) *ChunkRecord {
				r.SizeBytes = -1
				return r
			},
			wantErr: ErrNegativeSize,
		},
		{
			name: "missing embedding",
			mutate: func(r *ChunkRecord) *ChunkRecord {
				r.Embedding = nil
				return r
			},
			wantErr: ErrEmptyEmbedding,
		},
		{
			name: "negative index",
			mutate: func(r *ChunkRecord) *ChunkRecord {
				r.ChunkIndex = -2
				return r
			},
			wantErr: ErrInvalidChunkRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunkRecord(tt.mutate(validChunk(0)))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunkRecord() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunkRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunkBatch(t *testing.T) {
	tests := []struct {
		name    string
		records func() []*ChunkRecord
		wantErr bool
	}{
		{
			name:    "single record",
			records: func() []*ChunkRecord { return []*ChunkRecord{validChunk(0)} },
		},
		{
			name: "contiguous records",
			records: func() []*ChunkRecord {
				return []*ChunkRecord{validChunk(0), validChunk(1), validChunk(2)}
			},
		},
		{
			name:    "empty batch",
			records: func() []*ChunkRecord { return nil },
			wantErr: true,
		},
		{
			name: "gap in indices",
			records: func() []*ChunkRecord {
				return []*ChunkRecord{validChunk(0), validChunk(2)}
			},
			wantErr: true,
		},
		{
			name: "not starting at zero",
			records: func() []*ChunkRecord {
				return []*ChunkRecord{validChunk(1), validChunk(2)}
			},
			wantErr: true,
		},
		{
			name: "mixed files",
			records: func() []*ChunkRecord {
				other := validChunk(1)
				other.Filename = "other.txt"
				return []*ChunkRecord{validChunk(0), other}
			},
			wantErr: true,
		},
		{
			name: "mixed dimensions",
			records: func() []*ChunkRecord {
				other := validChunk(1)
				other.Embedding = []float32{0.5}
				return []*ChunkRecord{validChunk(0), other}
			},
			wantErr: true,
		},
		{
			name: "mixed sizes",
			records: func() []*ChunkRecord {
				other := validChunk(1)
				other.SizeBytes = 7
				return []*ChunkRecord{validChunk(0), other}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunkBatch(tt.records())
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChunkBatch) {
					t.Errorf("ValidateChunkBatch() error = %v, want ErrInvalidChunkBatch", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateChunkBatch() unexpected error = %v", err)
			}
		})
	}
}

func TestValidateUserID(t *testing.T) {
	if err := ValidateUserID("abc"); err != nil {
		t.Errorf("ValidateUserID() unexpected error = %v", err)
	}
	if err := ValidateUserID(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("ValidateUserID() error = %v, want ErrEmptyUserID", err)
	}
}
