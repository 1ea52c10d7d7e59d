package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// QuotaLimit is the maximum number of bytes a single user may have stored (50 MiB).
const QuotaLimit int64 = 50 * 1024 * 1024

// ID is a content-derived identifier used to build storage keys.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// UserQuota tracks the cumulative number of bytes stored for one user.
// Only the quota ledger mutates TotalStorageBytes.
type UserQuota struct {
	UserID            string
	TotalStorageBytes int64
	UpdatedAt         time.Time
}

// ChunkRecord is a bounded-size text segment of an ingested file with its embedding.
type ChunkRecord struct {
	UserID     string
	Filename   string
	ChunkIndex int       // 0-based, contiguous within a file
	Content    string
	Embedding  []float32 // fixed length for a given model
	SizeBytes  int64     // size of the source file, repeated on every chunk
	CreatedAt  time.Time
}

// FileStatus is the lifecycle state of a file manifest.
type FileStatus int

const (
	// FileStatusPending marks a file whose chunks are still being written.
	FileStatusPending FileStatus = iota + 1
	// FileStatusComplete marks a file whose chunks are all durable.
	FileStatusComplete
)

// String returns the lowercase name of the status.
func (s FileStatus) String() string {
	switch s {
	case FileStatusPending:
		return "pending"
	case FileStatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// FileManifest describes one ingested file. It is the commit point of a bulk chunk write:
// chunks of a file are only visible once its manifest is complete.
type FileManifest struct {
	UserID     string
	Filename   string
	ChunkCount int
	SizeBytes  int64
	Dimensions int
	Status     FileStatus
	CreatedAt  time.Time
}

// Usage is a point-in-time view of a user's storage consumption.
type Usage struct {
	UserID     string
	UsedBytes  int64
	LimitBytes int64
}

// Remaining returns the number of bytes the user may still store.
func (u Usage) Remaining() int64 {
	if u.UsedBytes >= u.LimitBytes {
		return 0
	}
	return u.LimitBytes - u.UsedBytes
}
