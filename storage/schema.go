package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/embedfill/core"
)

// ValidateSchema checks that a table name and schema can be used with CreateTable.
func ValidateSchema(name string, schema *core.Schema) error {
	if err := core.ValidateTableName(name); err != nil {
		return err
	}
	if schema == nil || len(schema.Columns) == 0 {
		return fmt.Errorf("%w: %s has no columns", ErrInvalidSchema, name)
	}
	seen := make(map[string]struct{}, len(schema.Columns))
	for _, c := range schema.Columns {
		if err := core.ValidateColumnName(c.Name); err != nil {
			return err
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %q", core.ErrDuplicateColumn, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Type < core.ColumnTypeString || c.Type > core.ColumnTypeVector {
			return fmt.Errorf("%w: column %s", ErrUnsupportedColumnType, c.Name)
		}
	}
	for i, k := range schema.Key {
		if _, ok := seen[k]; !ok {
			return fmt.Errorf("%w: key column %s", ErrColumnNotFound, k)
		}
		if slices.Contains(schema.Key[:i], k) {
			return fmt.Errorf("%w: key column %q", core.ErrDuplicateColumn, k)
		}
	}
	return nil
}

// HasNullKey reports whether any key column of the row is NULL.
func HasNullKey(row core.Row, keyColumns []string) bool {
	for _, k := range keyColumns {
		if row[k] == nil {
			return true
		}
	}
	return false
}

// NormalizeForSchema returns a copy of row holding exactly the schema's columns
// with normalized values. Columns the schema doesn't declare are dropped.
func NormalizeForSchema(schema *core.Schema, row core.Row) (core.Row, error) {
	out := make(core.Row, len(schema.Columns))
	for _, c := range schema.Columns {
		v, err := core.NormalizeValue(row[c.Name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		v = coerce(c.Type, v)
		if v != nil {
			if typ, _ := core.TypeOf(v); typ != c.Type {
				return nil, fmt.Errorf("%w: column %s is %s, got %T", ErrTypeMismatch, c.Name, c.Type, v)
			}
		}
		out[c.Name] = v
	}
	return out, nil
}

// coerce converts lossless representations into the column's type:
// RFC 3339 strings into timestamps and integers into floats. Timestamps are
// truncated to the microsecond precision both stores keep.
func coerce(typ core.ColumnType, v any) any {
	switch typ {
	case core.ColumnTypeTimestamp:
		switch val := v.(type) {
		case time.Time:
			return val.Truncate(time.Microsecond)
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
				return ts.UTC().Truncate(time.Microsecond)
			}
		}
	case core.ColumnTypeFloat64:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	}
	return v
}

// Coercible reports whether every non-null value of type from can be stored
// in a column of type to.
func Coercible(from, to core.ColumnType) bool {
	return from == to || (from == core.ColumnTypeInt64 && to == core.ColumnTypeFloat64)
}

// CoerceKey converts a key tuple over columns into the types schema declares
// for them, so it encodes the same way as keys stored in that table.
// Columns the schema lacks keep their values.
func CoerceKey(schema *core.Schema, columns []string, key core.Key) core.Key {
	out := make(core.Key, len(key))
	for i, v := range key {
		out[i] = v
		if i >= len(columns) {
			continue
		}
		if c, ok := schema.Column(columns[i]); ok {
			out[i] = coerce(c.Type, v)
		}
	}
	return out
}
