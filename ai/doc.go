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


// Package ai provides the text embedding abstraction used by the ingestion pipeline.
//
// The Embedder interface turns text into fixed-length float32 vectors. Callers
// depend on the interface; concrete models live in sub-packages:
//
//   - ai/openai: OpenAI-compatible HTTP embedding services via langchaingo
//   - ai/mock: deterministic test double
//
// # Lazy initialization
//
// Embedding models are expensive to load, so applications wrap their factory in a
// LazyEmbedder. The model handle is owned by the application, built on first use
// under a mutex, and rebuilt on the next call if initialization failed.
//
//	lazy := ai.NewLazyEmbedder(openai.NewFactory(ai.DefaultConfig()))
//	if err := lazy.Initialize(ctx); err != nil { // optional eager startup
//	    log.Fatal(err)
//	}
//	vector, err := lazy.EmbedText(ctx, "Hello world")
//
// # Retries
//
// RetryWithBackoff wraps transient failures with exponential backoff.
package ai
