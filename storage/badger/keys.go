package badger

import (
	"encoding/binary"

	"github.com/poiesic/nexus/core"
)

// Key prefixes for different data types
const (
	quotaPrefix = "quota"
	filePrefix  = "file"
	chunkPrefix = "chunk"
)

// makeQuotaKey generates the ledger key for a user.
// Format: prefix:userID
func makeQuotaKey(userID string) []byte {
	prefix := quotaPrefix + ":"
	buf := make([]byte, len(prefix)+len(userID))
	offset := copy(buf, prefix)
	copy(buf[offset:], userID)
	return buf
}

// userHash and fileHash derive fixed-width key segments so arbitrary user ids
// and filenames cannot produce ambiguous keys. The NUL separator keeps
// ("ab", "c") and ("a", "bc") apart.
func userHash(userID string) core.ID {
	return core.IDFromContent(userID)
}

func fileHash(userID, filename string) core.ID {
	return core.IDFromContent(userID + "\x00" + filename)
}

// makePartialFileKey generates a prefix matching all manifests of a user.
// Format: prefix:userHash
func makePartialFileKey(userID string) []byte {
	prefix := filePrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(userHash(userID)))
	return buf
}

// makeFileKey generates the manifest key of one file.
// Format: prefix:userHash:fileHash
func makeFileKey(userID, filename string) []byte {
	partial := makePartialFileKey(userID)
	buf := make([]byte, len(partial)+8)
	offset := copy(buf, partial)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fileHash(userID, filename)))
	return buf
}

// makePartialChunkKey generates a prefix matching all chunks of one file.
// Format: prefix:userHash:fileHash
func makePartialChunkKey(userID, filename string) []byte {
	prefix := chunkPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(userHash(userID)))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(fileHash(userID, filename)))
	return buf
}

// makeChunkKey generates the key of a single chunk.
// Format: prefix:userHash:fileHash:index
func makeChunkKey(userID, filename string, index int) []byte {
	partial := makePartialChunkKey(userID, filename)
	buf := make([]byte, len(partial)+4)
	offset := copy(buf, partial)
	// BigEndian so lexicographic order matches chunk order
	binary.BigEndian.PutUint32(buf[offset:], uint32(index))
	return buf
}
