package ingestion

import (
	"fmt"
	"slices"

	"github.com/poiesic/embedfill/core"
)

// schemaBuilder infers column types from normalized rows.
// Columns keep the order in which they first appear.
type schemaBuilder struct {
	names []string
	types map[string]core.ColumnType
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{types: make(map[string]core.ColumnType)}
}

// observe merges the columns of row. Integers widen to floats when a column
// holds both.
func (b *schemaBuilder) observe(row core.Row) error {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	// Map order is random; sort new columns of a single row for stable output.
	slices.Sort(keys)
	for _, name := range keys {
		if _, seen := b.types[name]; !seen {
			b.names = append(b.names, name)
			b.types[name] = 0
		}
		typ, ok := core.TypeOf(row[name])
		if !ok {
			continue
		}
		prev := b.types[name]
		switch {
		case prev == 0 || prev == typ:
			b.types[name] = typ
		case isNumeric(prev) && isNumeric(typ):
			b.types[name] = core.ColumnTypeFloat64
		default:
			return fmt.Errorf("%w: column %s holds %s and %s", ErrTypeConflict, name, prev, typ)
		}
	}
	return nil
}

// schema returns the inferred schema. Columns that were NULL in every row
// default to strings.
func (b *schemaBuilder) schema(keyColumns []string) (*core.Schema, error) {
	if len(b.names) == 0 {
		return nil, ErrNoColumns
	}
	schema := &core.Schema{Key: slices.Clone(keyColumns)}
	for _, name := range b.names {
		typ := b.types[name]
		if typ == 0 {
			typ = core.ColumnTypeString
		}
		schema.Columns = append(schema.Columns, core.Column{Name: name, Type: typ})
	}
	return schema, nil
}

func isNumeric(t core.ColumnType) bool {
	return t == core.ColumnTypeInt64 || t == core.ColumnTypeFloat64
}
