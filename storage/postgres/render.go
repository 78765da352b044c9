package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/query"
	"github.com/poiesic/embedfill/storage"
)

// Aliases used in rendered statements.
const (
	sourceAlias = "s"
	targetAlias = "t"
)

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// quoteColumn quotes a column name, optionally qualified by a table alias.
func quoteColumn(alias, name string) string {
	if alias == "" {
		return pgx.Identifier{name}.Sanitize()
	}
	return alias + "." + pgx.Identifier{name}.Sanitize()
}

// binder collects positional parameters.
type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// renderPredicate renders p against columns of alias. Values become parameters.
func renderPredicate(p query.Predicate, alias string, b *binder) (string, error) {
	switch n := p.(type) {
	case nil:
		return "TRUE", nil
	case query.Literal:
		if n.Value {
			return "TRUE", nil
		}
		return "FALSE", nil
	case query.Comparison:
		if n.Value == nil {
			// Comparing with NULL is never true.
			return "NULL", nil
		}
		return fmt.Sprintf("%s %s %s", quoteColumn(alias, n.Column), n.Op, b.bind(n.Value)), nil
	case query.IsNull:
		if n.Negate {
			return quoteColumn(alias, n.Column) + " IS NOT NULL", nil
		}
		return quoteColumn(alias, n.Column) + " IS NULL", nil
	case query.In:
		items := make([]string, len(n.Values))
		for i, v := range n.Values {
			if v == nil {
				items[i] = "NULL"
				continue
			}
			items[i] = b.bind(v)
		}
		op := " IN "
		if n.Negate {
			op = " NOT IN "
		}
		return quoteColumn(alias, n.Column) + op + "(" + strings.Join(items, ", ") + ")", nil
	case query.Like:
		op := " LIKE "
		if n.Negate {
			op = " NOT LIKE "
		}
		return quoteColumn(alias, n.Column) + op + b.bind(n.Pattern), nil
	case query.And:
		return renderTerms(n.Terms, " AND ", alias, b)
	case query.Or:
		return renderTerms(n.Terms, " OR ", alias, b)
	case query.Not:
		inner, err := renderPredicate(n.Operand, alias, b)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	default:
		return "", fmt.Errorf("%w: unsupported predicate %T", query.ErrInvalidPredicate, p)
	}
}

func renderTerms(terms []query.Predicate, sep, alias string, b *binder) (string, error) {
	parts := make([]string, len(terms))
	for i, t := range terms {
		s, err := renderPredicate(t, alias, b)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + s + ")"
	}
	return strings.Join(parts, sep), nil
}

// renderSelection renders the SELECT statement of a selection. selected are
// the source columns carried through, as resolved by Query.SelectColumns.
func renderSelection(sel storage.Selection, selected []string) (string, []any, error) {
	q := sel.Query
	b := &binder{}

	cols := make([]string, 0, len(selected)+1)
	for _, c := range selected {
		cols = append(cols, quoteColumn(sourceAlias, c))
	}
	cols = append(cols, quoteColumn(sourceAlias, q.ContentColumn)+" AS "+quoteColumn("", core.ContentColumn))

	where, err := renderPredicate(q.Where, sourceAlias, b)
	if err != nil {
		return "", nil, err
	}
	conds := []string{"(" + where + ")"}

	if sel.Exclude != "" {
		if len(sel.KeyColumns) == 0 {
			return "", nil, fmt.Errorf("%w: anti-join on %s without key columns", core.ErrEmptyKeyColumns, sel.Exclude)
		}
		matches := make([]string, len(sel.KeyColumns))
		for i, k := range sel.KeyColumns {
			// Rows with a NULL key member can never be matched, so they are never selected.
			conds = append(conds, quoteColumn(sourceAlias, k)+" IS NOT NULL")
			matches[i] = quoteColumn(targetAlias, k) + " = " + quoteColumn(sourceAlias, k)
		}
		conds = append(conds, fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
			quoteTable(sel.Exclude), targetAlias, strings.Join(matches, " AND ")))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(quoteTable(q.Source))
	sb.WriteString(" AS " + sourceAlias)
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(conds, " AND "))
	if sel.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(sel.Limit))
	}
	return sb.String(), b.args, nil
}

// sqlType returns the column type used when creating tables.
func sqlType(t core.ColumnType) (string, error) {
	switch t {
	case core.ColumnTypeString:
		return "text", nil
	case core.ColumnTypeInt64:
		return "bigint", nil
	case core.ColumnTypeFloat64:
		return "double precision", nil
	case core.ColumnTypeBool:
		return "boolean", nil
	case core.ColumnTypeTimestamp:
		return "timestamptz", nil
	case core.ColumnTypeVector:
		return "vector", nil
	default:
		return "", fmt.Errorf("%w: %d", storage.ErrUnsupportedColumnType, t)
	}
}

// columnType maps a format_type() name to a column type.
func columnType(sqlName string) (core.ColumnType, bool) {
	name := strings.ToLower(sqlName)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	switch strings.TrimSpace(name) {
	case "text", "character varying", "character", "varchar", "char", "name", "citext":
		return core.ColumnTypeString, true
	case "bigint", "integer", "smallint":
		return core.ColumnTypeInt64, true
	case "double precision", "real", "numeric":
		return core.ColumnTypeFloat64, true
	case "boolean":
		return core.ColumnTypeBool, true
	case "timestamp with time zone", "timestamp without time zone", "timestamp", "timestamptz":
		return core.ColumnTypeTimestamp, true
	case "vector":
		return core.ColumnTypeVector, true
	default:
		return 0, false
	}
}

// renderCreateTable renders CREATE TABLE for a validated schema.
func renderCreateTable(name string, schema *core.Schema) (string, error) {
	defs := make([]string, 0, len(schema.Columns)+1)
	for _, c := range schema.Columns {
		typ, err := sqlType(c.Type)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.Name, err)
		}
		defs = append(defs, quoteColumn("", c.Name)+" "+typ)
	}
	if len(schema.Key) > 0 {
		keys := make([]string, len(schema.Key))
		for i, k := range schema.Key {
			keys[i] = quoteColumn("", k)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}
	return "CREATE TABLE " + quoteTable(name) + " (" + strings.Join(defs, ", ") + ")", nil
}

// renderInsert renders an INSERT of one row that skips existing keys.
func renderInsert(name string, columns []string) string {
	cols := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quoteColumn("", c)
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO " + quoteTable(name) + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(params, ", ") + ") ON CONFLICT DO NOTHING"
}
