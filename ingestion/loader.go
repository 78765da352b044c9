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

package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/storage"
)

// Defaults for a Loader.
const (
	DefaultBatchSize  = 500
	DefaultSampleSize = 1000
)

// Loader reads JSON lines into a table.
type Loader struct {
	store      storage.TableStore
	batchSize  int
	sampleSize int
	logger     *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithBatchSize sets the number of rows per Insert call.
func WithBatchSize(size int) Option {
	return func(l *Loader) error {
		if size <= 0 {
			return ErrInvalidBatchSize
		}
		l.batchSize = size
		return nil
	}
}

// WithSampleSize sets how many leading rows are read before a new table's
// schema is inferred. Columns that first appear later are dropped.
func WithSampleSize(size int) Option {
	return func(l *Loader) error {
		if size < 1 {
			size = 1
		}
		l.sampleSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLoader creates a Loader writing to store.
func NewLoader(store storage.TableStore, opts ...Option) (*Loader, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	l := &Loader{
		store:      store,
		batchSize:  DefaultBatchSize,
		sampleSize: DefaultSampleSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "loader")
	return l, nil
}

// LoadResult summarizes a Load call.
type LoadResult struct {
	// Read counts the records decoded from the input.
	Read int64
	// Inserted counts the rows the store accepted. Rows whose key already
	// existed are not counted.
	Inserted int64
	// Created reports whether Load created the table.
	Created bool
	Schema  *core.Schema
}

// Load inserts every JSON object of r into table. A missing table is
// created from the schema inferred over the leading rows, keyed by
// keyColumns. An existing table keeps its schema and key.
func (l *Loader) Load(ctx context.Context, table string, keyColumns []string, r io.Reader) (*LoadResult, error) {
	if err := core.ValidateTableName(table); err != nil {
		return nil, err
	}
	if len(keyColumns) > 0 {
		if err := core.ValidateKeyColumns(keyColumns); err != nil {
			return nil, err
		}
	}

	result := &LoadResult{}
	exists, err := l.store.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if exists {
		result.Schema, err = l.store.TableSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		if len(keyColumns) > 0 && !slices.Equal(keyColumns, result.Schema.Key) {
			l.logger.Warn("ignoring key columns for existing table",
				"table", table, "requested", keyColumns, "key", result.Schema.Key)
		}
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var pending []core.Row
	builder := newSchemaBuilder()
	flush := func() error {
		for len(pending) > 0 {
			n := min(len(pending), l.batchSize)
			inserted, err := l.store.Insert(ctx, table, pending[:n])
			if err != nil {
				return err
			}
			result.Inserted += inserted
			pending = pending[n:]
		}
		return nil
	}
	create := func() error {
		schema, err := builder.schema(keyColumns)
		if err != nil {
			return err
		}
		if err := l.store.CreateTable(ctx, table, schema); err != nil {
			return err
		}
		l.logger.Info("created table", "table", table, "columns", schema.Names(), "key", schema.Key)
		result.Schema = schema
		result.Created = true
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		row, err := decodeRecord(dec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("record %d: %w", result.Read+1, err)
		}
		result.Read++

		if result.Schema == nil {
			if err := builder.observe(row); err != nil {
				return result, fmt.Errorf("record %d: %w", result.Read, err)
			}
		}
		pending = append(pending, row)

		if result.Schema == nil && len(pending) >= l.sampleSize {
			if err := create(); err != nil {
				return result, err
			}
		}
		if result.Schema != nil && len(pending) >= l.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if result.Schema == nil {
		if result.Read == 0 {
			return result, nil
		}
		if err := create(); err != nil {
			return result, err
		}
	}
	if err := flush(); err != nil {
		return result, err
	}
	l.logger.Debug("load complete", "table", table, "read", result.Read, "inserted", result.Inserted)
	return result, nil
}

// decodeRecord reads the next JSON object and normalizes its values.
func decodeRecord(dec *json.Decoder) (core.Row, error) {
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidRecord)
	}
	row := core.Row(raw)
	if err := core.NormalizeRow(row); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return row, nil
}

// Export writes every row of table to w as JSON lines and returns the
// number of rows written.
func Export(ctx context.Context, store storage.TableStore, table string, w io.Writer) (int64, error) {
	enc := json.NewEncoder(w)
	var n int64
	err := store.Scan(ctx, table, func(row core.Row) error {
		if err := enc.Encode(map[string]any(row)); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
