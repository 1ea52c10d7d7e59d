// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/nexus/core"
)

// Timestamps are stored as Unix microseconds.

// MarshalUserQuota serializes a UserQuota to bytes.
func MarshalUserQuota(q *core.UserQuota) []byte {
	size := ord.String.Size(q.UserID) +
		varint.Int64.Size(q.TotalStorageBytes) +
		varint.Int64.Size(q.UpdatedAt.UnixMicro())
	buf := make([]byte, size)
	n := ord.String.Marshal(q.UserID, buf)
	n += varint.Int64.Marshal(q.TotalStorageBytes, buf[n:])
	varint.Int64.Marshal(q.UpdatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalUserQuota deserializes a UserQuota from bytes.
func UnmarshalUserQuota(data []byte) (*core.UserQuota, error) {
	d := decoder{data: data}
	q := &core.UserQuota{
		UserID:            d.string(),
		TotalStorageBytes: d.int64(),
		UpdatedAt:         d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return q, nil
}

// MarshalChunkRecord serializes a ChunkRecord to bytes.
func MarshalChunkRecord(record *core.ChunkRecord) []byte {
	size := ord.String.Size(record.UserID) +
		ord.String.Size(record.Filename) +
		varint.Int64.Size(int64(record.ChunkIndex)) +
		ord.String.Size(record.Content) +
		varint.Int64.Size(int64(len(record.Embedding))) +
		varint.Int64.Size(record.SizeBytes) +
		varint.Int64.Size(record.CreatedAt.UnixMicro())
	for _, v := range record.Embedding {
		size += raw.Float32.Size(v)
	}

	buf := make([]byte, size)
	n := ord.String.Marshal(record.UserID, buf)
	n += ord.String.Marshal(record.Filename, buf[n:])
	n += varint.Int64.Marshal(int64(record.ChunkIndex), buf[n:])
	n += ord.String.Marshal(record.Content, buf[n:])
	n += varint.Int64.Marshal(int64(len(record.Embedding)), buf[n:])
	for _, v := range record.Embedding {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	n += varint.Int64.Marshal(record.SizeBytes, buf[n:])
	varint.Int64.Marshal(record.CreatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalChunkRecord deserializes a ChunkRecord from bytes.
func UnmarshalChunkRecord(data []byte) (*core.ChunkRecord, error) {
	d := decoder{data: data}
	record := &core.ChunkRecord{
		UserID:     d.string(),
		Filename:   d.string(),
		ChunkIndex: int(d.int64()),
		Content:    d.string(),
	}
	record.Embedding = d.float32s()
	record.SizeBytes = d.int64()
	record.CreatedAt = d.time()
	if err := d.finish(); err != nil {
		return nil, err
	}
	return record, nil
}

// MarshalFileManifest serializes a FileManifest to bytes.
func MarshalFileManifest(m *core.FileManifest) []byte {
	size := ord.String.Size(m.UserID) +
		ord.String.Size(m.Filename) +
		varint.Int64.Size(int64(m.ChunkCount)) +
		varint.Int64.Size(m.SizeBytes) +
		varint.Int64.Size(int64(m.Dimensions)) +
		varint.Int64.Size(int64(m.Status)) +
		varint.Int64.Size(m.CreatedAt.UnixMicro())

	buf := make([]byte, size)
	n := ord.String.Marshal(m.UserID, buf)
	n += ord.String.Marshal(m.Filename, buf[n:])
	n += varint.Int64.Marshal(int64(m.ChunkCount), buf[n:])
	n += varint.Int64.Marshal(m.SizeBytes, buf[n:])
	n += varint.Int64.Marshal(int64(m.Dimensions), buf[n:])
	n += varint.Int64.Marshal(int64(m.Status), buf[n:])
	varint.Int64.Marshal(m.CreatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalFileManifest deserializes a FileManifest from bytes.
func UnmarshalFileManifest(data []byte) (*core.FileManifest, error) {
	d := decoder{data: data}
	m := &core.FileManifest{
		UserID:     d.string(),
		Filename:   d.string(),
		ChunkCount: int(d.int64()),
		SizeBytes:  d.int64(),
		Dimensions: int(d.int64()),
		Status:     core.FileStatus(d.int64()),
		CreatedAt:  d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// decoder walks a mus-encoded buffer field by field and keeps the first error.
type decoder struct {
	data   []byte
	offset int
	err    error
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.data[d.offset:])
	d.offset += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.data[d.offset:])
	d.offset += n
	d.err = err
	return v
}

func (d *decoder) time() time.Time {
	micros := d.int64()
	if d.err != nil {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func (d *decoder) float32s() []float32 {
	length := d.int64()
	if d.err != nil {
		return nil
	}
	// Each float32 occupies 4 bytes; reject lengths the buffer cannot hold.
	if length < 0 || length > int64(len(d.data)-d.offset)/4 {
		d.err = fmt.Errorf("invalid vector length %d", length)
		return nil
	}
	vector := make([]float32, length)
	for i := range vector {
		v, n, err := raw.Float32.Unmarshal(d.data[d.offset:])
		d.offset += n
		if err != nil {
			d.err = err
			return nil
		}
		vector[i] = v
	}
	return vector
}

func (d *decoder) finish() error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
	}
	return nil
}
