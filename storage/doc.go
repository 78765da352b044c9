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

// Package storage provides the table storage abstraction for embedfill.
//
// This package defines the TableStore interface that decouples the embedding
// loop from the database holding the source and destination tables. Two
// implementations exist:
//
//   - storage/badger: an embedded BadgerDB store, the default for the CLI and tests
//   - storage/postgres: a PostgreSQL store with pgvector columns
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.TableStore interface:
//
//	store, err := badger.NewTableStore(backend)  // returns storage.TableStore
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Staging
//
// TableStore.Stage evaluates a Selection once and materializes the result.
// The working set is a snapshot: inserts into the destination table made while
// it is held do not change it. Callers must Release every working set they
// stage, on success and failure paths alike.
//
// # Serialization
//
// Rows, schemas and key tuples are encoded with mus-go (see serialization.go).
// Key tuples encode deterministically, so equal tuples produce equal bytes and
// the embedded store can use them directly as storage keys.
//
// # Thread Safety
//
// All store implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All store methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
