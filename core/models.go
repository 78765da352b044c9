package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Fixed column names shared by every destination table.
const (
	// ContentColumn is the alias given to the source content column.
	ContentColumn = "content"

	// EmbeddingColumn holds the generated vector. NULL when embedding failed.
	EmbeddingColumn = "ml_generate_embedding_result"

	// StatusColumn holds the backend diagnostic. Empty on success.
	StatusColumn = "ml_generate_embedding_status"
)

// ColumnType is the storage type of a column.
type ColumnType int

const (
	// ColumnTypeString is a UTF-8 string.
	ColumnTypeString ColumnType = iota + 1
	// ColumnTypeInt64 is a signed 64-bit integer.
	ColumnTypeInt64
	// ColumnTypeFloat64 is a double precision float.
	ColumnTypeFloat64
	// ColumnTypeBool is a boolean.
	ColumnTypeBool
	// ColumnTypeTimestamp is a point in time (UTC, microsecond precision).
	ColumnTypeTimestamp
	// ColumnTypeVector is a float32 embedding vector.
	ColumnTypeVector
)

// String returns the lowercase type name.
func (t ColumnType) String() string {
	switch t {
	case ColumnTypeString:
		return "string"
	case ColumnTypeInt64:
		return "int64"
	case ColumnTypeFloat64:
		return "float64"
	case ColumnTypeBool:
		return "bool"
	case ColumnTypeTimestamp:
		return "timestamp"
	case ColumnTypeVector:
		return "vector"
	default:
		return "unknown"
	}
}

// ParseColumnType maps a type name produced by String back to a ColumnType.
func ParseColumnType(name string) (ColumnType, bool) {
	for t := ColumnTypeString; t <= ColumnTypeVector; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// Column describes one column of a table or query result.
type Column struct {
	Name string
	Type ColumnType
}

// Schema describes the columns of a table and the columns forming its key.
// Key may be empty for query results and for source tables without a declared key.
type Schema struct {
	Columns []Column
	Key     []string
}

// Column returns the named column.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns column names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Row is a single table row keyed by column name.
// Values are nil, string, int64, float64, bool, time.Time or []float32.
type Row map[string]any

// Key extracts the key tuple for the given key columns.
// Missing columns yield nil members.
func (r Row) Key(columns []string) Key {
	key := make(Key, len(columns))
	for i, c := range columns {
		key[i] = r[c]
	}
	return key
}

// Project returns a copy of the row restricted to the given columns.
func (r Row) Project(columns []string) Row {
	out := make(Row, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Status returns the row's embedding status, or "" if unset.
func (r Row) Status() string {
	s, _ := r[StatusColumn].(string)
	return s
}

// Content returns the row's content value as a string and whether it is non-null.
func (r Row) Content() (string, bool) {
	s, ok := r[ContentColumn].(string)
	return s, ok
}

// Key is an ordered tuple of key column values.
type Key []any

// ResultColumns returns the columns the embedding backend appends to every row.
func ResultColumns() []Column {
	return []Column{
		{Name: EmbeddingColumn, Type: ColumnTypeVector},
		{Name: StatusColumn, Type: ColumnTypeString},
	}
}

// TypeOf reports the column type of a normalized value.
// Returns false for nil and unsupported values.
func TypeOf(v any) (ColumnType, bool) {
	switch v.(type) {
	case string:
		return ColumnTypeString, true
	case int64:
		return ColumnTypeInt64, true
	case float64:
		return ColumnTypeFloat64, true
	case bool:
		return ColumnTypeBool, true
	case time.Time:
		return ColumnTypeTimestamp, true
	case []float32:
		return ColumnTypeVector, true
	default:
		return 0, false
	}
}
