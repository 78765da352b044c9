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
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/query"
	"github.com/poiesic/embedfill/storage"
)

// TableStore implements storage.TableStore for BadgerDB.
//
// Each table is a catalog entry holding its schema plus one entry per row.
// Rows of keyed tables are stored under their encoded key tuple, which makes
// key uniqueness a property of the keyspace. Rows of tables without key
// columns get sequential IDs.
type TableStore struct {
	backend     *Backend
	ownsBackend bool

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

var _ storage.TableStore = (*TableStore)(nil)

// NewTableStore creates a TableStore on an open backend.
// Closing the store does not close the backend.
func NewTableStore(backend *Backend) *TableStore {
	return &TableStore{
		backend: backend,
		seqs:    make(map[string]*badger.Sequence),
	}
}

// Open opens a database at path and returns a TableStore that owns it.
func Open(path string, inMemory bool) (storage.TableStore, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	store := NewTableStore(backend)
	store.ownsBackend = true
	return store, nil
}

// Close releases row sequences, and closes the backend when the store owns it.
func (s *TableStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, err)
		}
		delete(s.seqs, name)
	}
	if s.ownsBackend && !s.backend.IsClosed() {
		errs = append(errs, s.backend.Close())
	}
	return errors.Join(errs...)
}

// TableExists reports whether the named table exists.
func (s *TableStore) TableExists(ctx context.Context, name string) (bool, error) {
	_, err := s.TableSchema(ctx, name)
	if errors.Is(err, storage.ErrTableNotFound) {
		return false, nil
	}
	return err == nil, err
}

// TableSchema returns the schema of the named table.
func (s *TableStore) TableSchema(ctx context.Context, name string) (*core.Schema, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var schema *core.Schema
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		schema, err = readSchema(tx, name)
		return err
	}, false)
	return schema, err
}

// CreateTable creates a table with the given schema.
func (s *TableStore) CreateTable(ctx context.Context, name string, schema *core.Schema) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := storage.ValidateSchema(name, schema); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeTableKey(name)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("%w: %s", storage.ErrTableExists, name)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := tx.Set(key, storage.MarshalSchema(schema)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListTables returns the names of all tables, sorted.
func (s *TableStore) ListTables(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var names []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(tablePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			names = append(names, tableNameFromKey(iter.Item().Key()))
		}
		return nil
	}, false)
	slices.Sort(names)
	return names, err
}

// Insert adds rows to a table, skipping rows whose key already exists.
// Rows of tables without key columns are always inserted.
func (s *TableStore) Insert(ctx context.Context, table string, rows []core.Row) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	schema, err := s.TableSchema(ctx, table)
	if err != nil {
		return 0, err
	}

	type entry struct {
		key   []byte
		value []byte
	}
	entries := make([]entry, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		normalized, err := storage.NormalizeForSchema(schema, row)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		value, err := storage.MarshalRow(schema, normalized)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}

		var key []byte
		if len(schema.Key) == 0 {
			id, err := s.nextRowID(table)
			if err != nil {
				return 0, err
			}
			key = makeSeqRowKey(table, id)
		} else {
			if storage.HasNullKey(normalized, schema.Key) {
				return 0, fmt.Errorf("insert into %s: %w", table, storage.ErrNullKey)
			}
			key = makeRowKey(table, storage.MarshalKey(normalized.Key(schema.Key)))
			// Duplicates within one call behave like duplicates across calls.
			if _, dup := seen[string(key)]; dup {
				continue
			}
			seen[string(key)] = struct{}{}
		}
		entries = append(entries, entry{key: key, value: value})
	}

	var inserted int64
	err = s.backend.writeBatch(len(entries), func(tx *badger.Txn, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := entries[i]
		if _, err := tx.Get(e.key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := tx.Set(e.key, e.value); err != nil {
			return err
		}
		inserted++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return inserted, nil
}

// Scan calls fn for every row of a table.
func (s *TableStore) Scan(ctx context.Context, table string, fn func(core.Row) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		schema, err := readSchema(tx, table)
		if err != nil {
			return err
		}
		return scanRows(ctx, tx, table, schema, fn)
	}, false)
}

// Stage evaluates the selection in a single read transaction and keeps the
// result in memory. The transaction's snapshot makes the working set
// independent of later writes.
func (s *TableStore) Stage(ctx context.Context, sel storage.Selection) (storage.Staged, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	q := sel.Query
	if q == nil {
		return nil, storage.ErrInvalidSelection
	}

	var rows []core.Row
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		schema, err := readSchema(tx, q.Source)
		if err != nil {
			return err
		}
		selected, err := q.SelectColumns(schema.Names())
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrColumnNotFound, err)
		}

		exclude, err := s.newExcluder(ctx, tx, sel)
		if err != nil {
			return err
		}

		errLimit := errors.New("limit reached")
		err = scanRows(ctx, tx, q.Source, schema, func(row core.Row) error {
			ok, err := query.Eval(q.Where, row)
			if err != nil {
				return fmt.Errorf("evaluate filter on %s: %w", q.Source, err)
			}
			if !ok {
				return nil
			}
			out := q.Project(row, selected)
			if exclude != nil {
				if storage.HasNullKey(out, sel.KeyColumns) {
					return nil
				}
				found, err := exclude(out.Key(sel.KeyColumns))
				if err != nil {
					return err
				}
				if found {
					return nil
				}
			}
			rows = append(rows, out)
			if sel.Limit > 0 && len(rows) >= sel.Limit {
				return errLimit
			}
			return nil
		})
		if errors.Is(err, errLimit) {
			return nil
		}
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	return &stagedRows{rows: rows}, nil
}

// newExcluder returns a key lookup against the selection's exclude table, or
// nil when the selection has none. Tables keyed by exactly the selection's key
// columns are probed directly; any other table is indexed up front.
func (s *TableStore) newExcluder(ctx context.Context, tx *badger.Txn, sel storage.Selection) (func(core.Key) (bool, error), error) {
	if sel.Exclude == "" {
		return nil, nil
	}
	if len(sel.KeyColumns) == 0 {
		return nil, fmt.Errorf("%w: anti-join on %s without key columns", core.ErrEmptyKeyColumns, sel.Exclude)
	}
	target, err := readSchema(tx, sel.Exclude)
	if err != nil {
		return nil, err
	}
	for _, k := range sel.KeyColumns {
		if _, ok := target.Column(k); !ok {
			return nil, fmt.Errorf("%w: %s.%s", storage.ErrColumnNotFound, sel.Exclude, k)
		}
	}

	// Stored keys went through the target's column types on insert.
	if slices.Equal(target.Key, sel.KeyColumns) {
		return func(key core.Key) (bool, error) {
			key = storage.CoerceKey(target, sel.KeyColumns, key)
			_, err := tx.Get(makeRowKey(sel.Exclude, storage.MarshalKey(key)))
			if err == badger.ErrKeyNotFound {
				return false, nil
			}
			return err == nil, err
		}, nil
	}

	index := make(map[string]struct{})
	err = scanRows(ctx, tx, sel.Exclude, target, func(row core.Row) error {
		index[string(storage.MarshalKey(row.Key(sel.KeyColumns)))] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return func(key core.Key) (bool, error) {
		key = storage.CoerceKey(target, sel.KeyColumns, key)
		_, found := index[string(storage.MarshalKey(key))]
		return found, nil
	}, nil
}

func (s *TableStore) nextRowID(table string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.seqs[table]
	if !ok {
		var err error
		seq, err = s.backend.GetSequence(makeRowSeqName(table))
		if err != nil {
			return 0, err
		}
		s.seqs[table] = seq
	}
	return seq.Next()
}

func (s *TableStore) checkOpen() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// readSchema loads a table's schema from the catalog.
func readSchema(tx *badger.Txn, name string) (*core.Schema, error) {
	item, err := tx.Get(makeTableKey(name))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
		}
		return nil, err
	}
	var schema *core.Schema
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		schema, unmarshalErr = storage.UnmarshalSchema(val)
		return unmarshalErr
	})
	return schema, err
}

// scanRows iterates the rows of a table in key order.
func scanRows(ctx context.Context, tx *badger.Txn, table string, schema *core.Schema, fn func(core.Row) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeRowPrefix(table)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var row core.Row
		err := iter.Item().Value(func(val []byte) error {
			var err error
			row, err = storage.UnmarshalRow(schema, val)
			return err
		})
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// stagedRows is an in-memory working set.
type stagedRows struct {
	mu   sync.Mutex
	rows []core.Row
}

var _ storage.Staged = (*stagedRows)(nil)

func (s *stagedRows) Rows() []core.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

func (s *stagedRows) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *stagedRows) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	return nil
}
