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

// Package ai provides abstractions for the text embedding services used by embedfill.
//
// The package is designed around two interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Provider: Creates embedders per model and owns their shared clients
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo (OpenAI, Ollama, vLLM, ...)
//   - ai/gemini: Gemini API and Vertex AI through google.golang.org/genai
//   - ai/cache: a Redis-backed decorator that memoizes embeddings by model and content
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, gemini.NewProvider, cache.NewProvider)
// return INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder) return CONCRETE types to enable test assertions and
// behavior injection via the mock's public methods.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithEmbeddingHost(host)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	embedder, err := provider.Embedder("text-embedding-3-small", ai.EmbedderOptions{})
//	vectors, err := embedder.EmbedTexts(ctx, []string{"Hello world"})
package ai
