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

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunkRecord indicates a ChunkRecord failed validation.
	ErrInvalidChunkRecord = errors.New("invalid chunk record")

	// ErrInvalidChunkBatch indicates a set of chunks cannot be written as one file.
	ErrInvalidChunkBatch = errors.New("invalid chunk batch")

	// ErrEmptyUserID indicates the user identifier is empty.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrEmptyFilename indicates the filename is empty.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrEmptyEmbedding indicates a chunk has no embedding vector.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")

	// ErrNegativeSize indicates a negative byte count.
	ErrNegativeSize = errors.New("size cannot be negative")
)
