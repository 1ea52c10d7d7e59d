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


// Package storage provides the storage abstraction layer for nexus.
//
// Two contracts live here:
//
//   - QuotaLedger: per-user byte accounting with an atomic reserve-or-reject
//     operation and a matching release.
//   - DocumentStore: bulk, all-or-nothing persistence of the chunk records of
//     one ingested file.
//
// The storage/badger package implements both on a single BadgerDB instance.
//
// # Atomic reservation
//
// TryReserve is a single conditional increment. A read of the current total
// followed by a separate write is not an acceptable implementation: two
// concurrent uploads for the same user would both observe the old total and
// both succeed past the limit.
//
// # Serialization
//
// Records are encoded with mus-go (see serialization.go). The encoding is
// positional, so field order in the codecs must never change for existing data.
//
// # Thread Safety
//
// All implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
