package storage

import (
	"context"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/query"
)

// TableStore provides the table operations needed to materialize embeddings.
// Implementations must be thread-safe and support concurrent access.
type TableStore interface {
	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, name string) (bool, error)

	// TableSchema returns the columns and key of the named table.
	// Returns ErrTableNotFound if the table doesn't exist.
	TableSchema(ctx context.Context, name string) (*core.Schema, error)

	// CreateTable creates a table with the given schema.
	// Key columns declared in the schema form the table's primary key.
	// Returns ErrTableExists if the table already exists.
	CreateTable(ctx context.Context, name string, schema *core.Schema) error

	// Stage evaluates a selection against the current table contents and
	// materializes the result into a working set owned by the caller.
	// The working set does not change once Stage returns.
	Stage(ctx context.Context, sel Selection) (Staged, error)

	// Insert adds rows to a table. Rows whose key already exists are skipped.
	// Returns the number of rows actually inserted.
	Insert(ctx context.Context, table string, rows []core.Row) (int64, error)

	// ListTables returns the names of all tables, sorted.
	ListTables(ctx context.Context) ([]string, error)

	// Scan calls fn for every row of a table. Iteration stops at the first error.
	Scan(ctx context.Context, table string, fn func(core.Row) error) error

	// Close closes the store and releases resources.
	Close() error
}

// Selection describes a bounded read of a query's output.
type Selection struct {
	// Query is the read over the source table.
	Query *query.Query

	// Exclude names a table whose keys are subtracted from the result.
	// A source row is excluded when a row with an equal key tuple exists in it.
	// Empty disables the anti-join.
	Exclude string

	// KeyColumns are the columns compared against Exclude.
	KeyColumns []string

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

// Staged is a materialized working set produced by TableStore.Stage.
type Staged interface {
	// Rows returns the staged rows in the query's output shape.
	Rows() []core.Row

	// Len returns the number of staged rows.
	Len() int

	// Release discards the working set. Safe to call more than once.
	Release(ctx context.Context) error
}
