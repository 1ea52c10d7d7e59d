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


package badger

// NewMemoryStores creates an in-memory quota ledger and document store for testing.
// Returns ledger, documents, backend, and error.
// Caller must close the document store and backend when done.
func NewMemoryStores(opts ...BackendOption) (*QuotaLedger, *DocumentStore, *Backend, error) {
	backend, err := OpenBackend("", true, opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	ledger := NewQuotaLedger(backend)
	documents := NewDocumentStore(backend)

	return ledger, documents, backend, nil
}
