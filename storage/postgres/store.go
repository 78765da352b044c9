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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/storage"
)

// Postgres error codes.
const (
	codeDuplicateTable = "42P07"
	codeUndefinedTable = "42P01"
)

// stagePrefix names the temporary tables created by Stage.
const stagePrefix = "_embedfill_stage_"

// Store implements storage.TableStore for PostgreSQL.
type Store struct {
	pool     *pgxpool.Pool
	ownsPool bool
	closed   atomic.Bool
	logger   *slog.Logger
}

var _ storage.TableStore = (*Store)(nil)

// NewStore creates a Store on an existing pool.
// Closing the store does not close the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: slog.Default().With("component", "postgres-store"),
	}
}

// Open applies migrations, connects to the database at url and returns a
// Store that owns the pool.
func Open(ctx context.Context, url string) (*Store, error) {
	if err := Migrate(url); err != nil {
		return nil, err
	}
	pool, err := Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	store := NewStore(pool)
	store.ownsPool = true
	return store, nil
}

// Close marks the store closed and closes the pool when the store owns it.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

// TableExists reports whether the named table exists.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if err := core.ValidateTableName(name); err != nil {
		return false, err
	}
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", quoteTable(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return exists, nil
}

// TableSchema reads a table's columns from the catalog. Columns whose type has
// no counterpart in core.ColumnType are left out.
func (s *Store) TableSchema(ctx context.Context, name string) (*core.Schema, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	exists, err := s.TableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, quoteTable(name))
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", name, err)
	}
	schema := &core.Schema{}
	for rows.Next() {
		var col, typ string
		if err := rows.Scan(&col, &typ); err != nil {
			rows.Close()
			return nil, err
		}
		ct, ok := columnType(typ)
		if !ok {
			s.logger.Debug("skipping column with unsupported type", "table", name, "column", col, "type", typ)
			continue
		}
		schema.Columns = append(schema.Columns, core.Column{Name: col, Type: ct})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", name, err)
	}

	keys, err := s.primaryKey(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if _, ok := schema.Column(k); ok {
			schema.Key = append(schema.Key, k)
		}
	}
	return schema, nil
}

func (s *Store) primaryKey(ctx context.Context, name string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = to_regclass($1) AND i.indisprimary
		ORDER BY array_position(i.indkey::int2[], a.attnum)`, quoteTable(name))
	if err != nil {
		return nil, fmt.Errorf("read primary key of %s: %w", name, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read primary key of %s: %w", name, err)
	}
	return keys, nil
}

// CreateTable creates a table whose key columns form the primary key.
func (s *Store) CreateTable(ctx context.Context, name string, schema *core.Schema) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := storage.ValidateSchema(name, schema); err != nil {
		return err
	}
	stmt, err := renderCreateTable(name, schema)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		if isPgError(err, codeDuplicateTable) {
			return fmt.Errorf("%w: %s", storage.ErrTableExists, name)
		}
		return fmt.Errorf("create table %s: %w", name, err)
	}
	s.logger.Debug("created table", "table", name, "columns", len(schema.Columns))
	return nil
}

// ListTables returns the names of all user tables, sorted. Tables in the
// public schema are listed unqualified.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')
		  AND table_schema NOT LIKE 'pg_temp%'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var schemaName, table string
		if err := rows.Scan(&schemaName, &table); err != nil {
			rows.Close()
			return nil, err
		}
		if table == MigrationsTable {
			continue
		}
		if schemaName != "public" {
			table = schemaName + "." + table
		}
		names = append(names, table)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Insert adds rows in one transaction. Rows whose key already exists are
// skipped by ON CONFLICT DO NOTHING.
func (s *Store) Insert(ctx context.Context, table string, rows []core.Row) (int64, error) {
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

	columns := schema.Names()
	stmt := renderInsert(table, columns)
	batch := &pgx.Batch{}
	for _, row := range rows {
		normalized, err := storage.NormalizeForSchema(schema, row)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		if storage.HasNullKey(normalized, schema.Key) {
			return 0, fmt.Errorf("insert into %s: %w", table, storage.ErrNullKey)
		}
		args := make([]any, len(columns))
		for i, c := range columns {
			args[i] = encodeValue(normalized[c])
		}
		batch.Queue(stmt, args...)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return inserted, nil
}

// Scan calls fn for every row of a table, ordered by key when the table has one.
func (s *Store) Scan(ctx context.Context, table string, fn func(core.Row) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	schema, err := s.TableSchema(ctx, table)
	if err != nil {
		return err
	}

	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = quoteColumn("", c.Name)
	}
	stmt := "SELECT " + strings.Join(cols, ", ") + " FROM " + quoteTable(table)
	if len(schema.Key) > 0 {
		keys := make([]string, len(schema.Key))
		for i, k := range schema.Key {
			keys[i] = quoteColumn("", k)
		}
		stmt += " ORDER BY " + strings.Join(keys, ", ")
	}

	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		row, err := decodeRow(rows)
		if err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Stage copies the selection into a temporary table on a dedicated
// connection and reads it back. The temporary table lives until Release.
func (s *Store) Stage(ctx context.Context, sel storage.Selection) (storage.Staged, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	q := sel.Query
	if q == nil {
		return nil, storage.ErrInvalidSelection
	}

	source, err := s.TableSchema(ctx, q.Source)
	if err != nil {
		return nil, err
	}
	selected, err := q.SelectColumns(source.Names())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrColumnNotFound, err)
	}
	output, err := q.OutputSchema(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrColumnNotFound, err)
	}
	if sel.Exclude != "" {
		target, err := s.TableSchema(ctx, sel.Exclude)
		if err != nil {
			return nil, err
		}
		for _, k := range sel.KeyColumns {
			if _, ok := target.Column(k); !ok {
				return nil, fmt.Errorf("%w: %s.%s", storage.ErrColumnNotFound, sel.Exclude, k)
			}
		}
	}

	selectStmt, args, err := renderSelection(sel, selected)
	if err != nil {
		return nil, err
	}
	name := stagePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	createStmt, err := renderCreateTable(name, output)
	if err != nil {
		return nil, err
	}
	createStmt = strings.Replace(createStmt, "CREATE TABLE", "CREATE TEMP TABLE", 1)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", q.Source, err)
	}
	staged := &stagedTable{name: name, conn: conn, logger: s.logger}

	if _, err := conn.Exec(ctx, createStmt); err != nil {
		staged.Release(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("stage %s: %w", q.Source, err)
	}
	insertStmt := "INSERT INTO " + quoteTable(name) + " " + selectStmt
	if _, err := conn.Exec(ctx, insertStmt, args...); err != nil {
		staged.Release(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("stage %s: %w", q.Source, err)
	}

	rows, err := conn.Query(ctx, "SELECT * FROM "+quoteTable(name))
	if err != nil {
		staged.Release(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("stage %s: %w", q.Source, err)
	}
	for rows.Next() {
		row, err := decodeRow(rows)
		if err != nil {
			rows.Close()
			staged.Release(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("stage %s: %w", q.Source, err)
		}
		staged.rows = append(staged.rows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		staged.Release(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("stage %s: %w", q.Source, err)
	}

	s.logger.Debug("staged rows", "source", q.Source, "table", name, "rows", len(staged.rows))
	return staged, nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// stagedTable is a working set backed by a temporary table.
type stagedTable struct {
	name   string
	rows   []core.Row
	logger *slog.Logger

	once sync.Once
	conn *pgxpool.Conn
	err  error
}

func (st *stagedTable) Rows() []core.Row { return st.rows }

func (st *stagedTable) Len() int { return len(st.rows) }

// Release drops the temporary table and returns the connection to the pool.
// A connection whose table could not be dropped is closed instead of reused.
func (st *stagedTable) Release(ctx context.Context) error {
	st.once.Do(func() {
		_, err := st.conn.Exec(ctx, "DROP TABLE IF EXISTS "+quoteTable(st.name))
		if err != nil && !isPgError(err, codeUndefinedTable) {
			st.logger.Warn("failed to drop staging table", "table", st.name, "err", err)
			st.err = fmt.Errorf("drop staging table %s: %w", st.name, err)
			st.conn.Conn().Close(ctx)
		}
		st.conn.Release()
		st.rows = nil
	})
	return st.err
}

// decodeRow reads the current row into a core.Row keyed by column name.
func decodeRow(rows pgx.Rows) (core.Row, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}
	fields := rows.FieldDescriptions()
	row := make(core.Row, len(values))
	for i, v := range values {
		n, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", fields[i].Name, err)
		}
		row[fields[i].Name] = n
	}
	return row, nil
}

// decodeValue converts driver values into the values carried by core.Row.
func decodeValue(v any) (any, error) {
	switch val := v.(type) {
	case pgvector.Vector:
		return val.Slice(), nil
	case pgtype.Numeric:
		if !val.Valid {
			return nil, nil
		}
		f, err := val.Float64Value()
		if err != nil {
			return nil, err
		}
		return f.Float64, nil
	default:
		return core.NormalizeValue(v)
	}
}

// encodeValue converts a row value into a query argument.
func encodeValue(v any) any {
	if vec, ok := v.([]float32); ok {
		return pgvector.NewVector(vec)
	}
	return v
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
