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
	"errors"

	"github.com/poiesic/embedfill/core"
)

var (
	// ErrTableNotFound indicates that the requested table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists indicates that a table with the same name already exists.
	ErrTableExists = errors.New("table already exists")

	// ErrColumnNotFound indicates a reference to a column the table does not have.
	ErrColumnNotFound = errors.New("column not found")

	// ErrInvalidIdentifier indicates a table or column name that cannot be used safely.
	ErrInvalidIdentifier = core.ErrInvalidIdentifier

	// ErrTypeMismatch indicates a value that does not match its column type.
	ErrTypeMismatch = errors.New("value does not match column type")

	// ErrInvalidSelection indicates a selection without a query.
	ErrInvalidSelection = errors.New("selection has no query")

	// ErrNullKey indicates a row whose key tuple contains NULL.
	ErrNullKey = errors.New("key column is NULL")

	// ErrInvalidSchema indicates a schema that cannot be used to create a table.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrUnsupportedColumnType indicates a column whose type the store cannot represent.
	ErrUnsupportedColumnType = errors.New("unsupported column type")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)
