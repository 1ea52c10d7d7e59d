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


// Package ingestion turns uploaded files into stored, embedded chunks.
//
// A Pipeline drives each file through a fixed sequence of stages:
//
//	parsing -> chunking -> embedding -> reserving_quota -> storing -> done
//
// Any stage may fail, producing an *Error that names the stage and a Kind.
// Quota is reserved only after the expensive work has succeeded, and a
// failure while storing releases the reservation before Ingest returns, so a
// failed ingestion never changes the user's tracked storage.
//
// Embedding calls fan out across a bounded ants worker pool. Ingest ignores
// caller cancellation once started: an abandoned request still runs to a
// terminal state, which keeps the quota ledger consistent.
//
// # Usage
//
//	pipeline, err := ingestion.NewPipeline(ledger, documents, embedder,
//	    ingestion.WithEmbedConcurrency(4),
//	)
//	if err != nil {
//	    return err
//	}
//	defer pipeline.Release()
//
//	result, err := pipeline.Ingest(ctx, "user-1", "notes.pdf", data)
//	if kind, ok := ingestion.KindOf(err); ok && kind == ingestion.KindQuotaExceeded {
//	    // tell the user they are out of space
//	}
package ingestion
