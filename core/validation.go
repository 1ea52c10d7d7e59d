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


package core

import "fmt"

// ValidateChunkRecord validates a ChunkRecord according to domain rules.
//
// Validation rules:
//   - UserID and Filename must not be empty
//   - ChunkIndex and SizeBytes must not be negative
//   - Embedding must not be empty
//
// Content may be empty only in theory; the chunker never produces empty segments.
func ValidateChunkRecord(record *ChunkRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidChunkRecord)
	}
	if record.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyUserID)
	}
	if record.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyFilename)
	}
	if record.ChunkIndex < 0 {
		return fmt.Errorf("%w: negative chunk index %d", ErrInvalidChunkRecord, record.ChunkIndex)
	}
	if record.SizeBytes < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrNegativeSize)
	}
	if len(record.Embedding) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyEmbedding)
	}
	return nil
}

// ValidateChunkBatch validates that records form the complete chunk set of one file.
//
// Validation rules:
//   - at least one record
//   - every record is individually valid
//   - all records share UserID, Filename and SizeBytes
//   - ChunkIndex values are 0..n-1 in slice order
//   - all embeddings have the same dimension
func ValidateChunkBatch(records []*ChunkRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: no records", ErrInvalidChunkBatch)
	}
	first := records[0]
	for i, record := range records {
		if err := ValidateChunkRecord(record); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrInvalidChunkBatch, i, err)
		}
		if record.UserID != first.UserID || record.Filename != first.Filename {
			return fmt.Errorf("%w: record %d belongs to a different file", ErrInvalidChunkBatch, i)
		}
		if record.SizeBytes != first.SizeBytes {
			return fmt.Errorf("%w: record %d has size %d, expected %d", ErrInvalidChunkBatch, i, record.SizeBytes, first.SizeBytes)
		}
		if record.ChunkIndex != i {
			return fmt.Errorf("%w: record %d has chunk index %d", ErrInvalidChunkBatch, i, record.ChunkIndex)
		}
		if len(record.Embedding) != len(first.Embedding) {
			return fmt.Errorf("%w: record %d has embedding dimension %d, expected %d",
				ErrInvalidChunkBatch, i, len(record.Embedding), len(first.Embedding))
		}
	}
	return nil
}

// ValidateUserID checks that a user identifier is usable as a key.
func ValidateUserID(userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return nil
}
