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

import (
	"context"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/storage"
)

// NewMemoryTableStore creates an in-memory table store for testing.
// Caller must close the store when done.
func NewMemoryTableStore() (storage.TableStore, error) {
	return Open("", true)
}

// SeedTable creates a table and inserts rows into it.
// Intended for tests and fixtures.
func SeedTable(ctx context.Context, store storage.TableStore, name string, schema *core.Schema, rows []core.Row) error {
	if err := store.CreateTable(ctx, name, schema); err != nil {
		return err
	}
	_, err := store.Insert(ctx, name, rows)
	return err
}
