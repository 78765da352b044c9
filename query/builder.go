package query

import (
	"fmt"
	"slices"

	"github.com/poiesic/embedfill/core"
)

// Query is the logical read over a source table: a projection plus the
// content column aliased as "content", filtered by a predicate.
// A Query carries no data; stores evaluate it against the current table
// contents every time it is used.
type Query struct {
	Source        string
	ContentColumn string
	// Projection lists source columns to carry through. Nil selects every column.
	Projection []string
	Where      Predicate
}

// Params defines inputs for Build.
type Params struct {
	Source        string
	ContentColumn string
	Projection    []string
	Where         Predicate
}

// Builder constructs validated queries.
// All methods are pure functions with no side effects.
// Zero value is ready to use.
type Builder struct{}

// Build validates the parameters and returns the query they describe.
// A projection of nil, empty or ["*"] selects all columns.
func (b Builder) Build(p Params) (*Query, error) {
	if err := core.ValidateTableName(p.Source); err != nil {
		return nil, err
	}
	if err := core.ValidateColumnName(p.ContentColumn); err != nil {
		return nil, err
	}

	projection, err := b.buildProjection(p.Projection)
	if err != nil {
		return nil, err
	}

	where := p.Where
	if where == nil {
		where = True
	}
	for _, c := range Columns(where) {
		if err := core.ValidateColumnName(c); err != nil {
			return nil, err
		}
	}

	return &Query{
		Source:        p.Source,
		ContentColumn: p.ContentColumn,
		Projection:    projection,
		Where:         where,
	}, nil
}

func (b Builder) buildProjection(columns []string) ([]string, error) {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == core.Wildcard) {
		return nil, nil
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == core.Wildcard {
			return nil, fmt.Errorf("%w: wildcard cannot be combined with explicit columns", core.ErrInvalidIdentifier)
		}
		if err := core.ValidateColumnName(c); err != nil {
			return nil, err
		}
		if slices.Contains(out, c) {
			return nil, fmt.Errorf("%w: %q", core.ErrDuplicateColumn, c)
		}
		out = append(out, c)
	}
	return out, nil
}

// WithColumns returns a copy of the query whose explicit projection also
// includes the given columns. Wildcard queries are returned unchanged.
func (q *Query) WithColumns(columns ...string) *Query {
	out := *q
	if q.Projection == nil {
		return &out
	}
	out.Projection = slices.Clone(q.Projection)
	for _, c := range columns {
		if !slices.Contains(out.Projection, c) {
			out.Projection = append(out.Projection, c)
		}
	}
	return &out
}

// SelectColumns resolves the projection against the columns available in the
// source, in output order. A source column literally named "content" is
// dropped because the content alias takes its place.
func (q *Query) SelectColumns(available []string) ([]string, error) {
	if !slices.Contains(available, q.ContentColumn) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Source, q.ContentColumn)
	}
	var selected []string
	if q.Projection == nil {
		selected = slices.Clone(available)
	} else {
		for _, c := range q.Projection {
			if !slices.Contains(available, c) {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Source, c)
			}
		}
		selected = slices.Clone(q.Projection)
	}
	for _, c := range Columns(q.Where) {
		if !slices.Contains(available, c) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, q.Source, c)
		}
	}
	return slices.DeleteFunc(selected, func(c string) bool { return c == core.ContentColumn }), nil
}

// Project builds the output row of the query from a source row.
func (q *Query) Project(row core.Row, selected []string) core.Row {
	out := row.Project(selected)
	out[core.ContentColumn] = row[q.ContentColumn]
	return out
}

// OutputSchema derives the query's output schema from the source schema.
func (q *Query) OutputSchema(source *core.Schema) (*core.Schema, error) {
	selected, err := q.SelectColumns(source.Names())
	if err != nil {
		return nil, err
	}
	out := &core.Schema{Columns: make([]core.Column, 0, len(selected)+1)}
	for _, name := range selected {
		col, _ := source.Column(name)
		out.Columns = append(out.Columns, col)
	}
	content, _ := source.Column(q.ContentColumn)
	out.Columns = append(out.Columns, core.Column{Name: core.ContentColumn, Type: content.Type})
	return out, nil
}
