package postgres

import (
	"testing"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/query"
	"github.com/poiesic/embedfill/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPredicate(t *testing.T) {
	tests := []struct {
		name string
		pred query.Predicate
		want string
		args []any
	}{
		{"nil", nil, "TRUE", nil},
		{"false", query.Literal{Value: false}, "FALSE", nil},
		{"comparison", query.Comparison{Column: "lang", Op: query.OpEq, Value: "en"}, `s."lang" = $1`, []any{"en"}},
		{"null comparison", query.Comparison{Column: "lang", Op: query.OpEq}, "NULL", nil},
		{"is not null", query.IsNull{Column: "body", Negate: true}, `s."body" IS NOT NULL`, nil},
		{
			"not in",
			query.In{Column: "id", Values: []any{int64(1), nil, int64(3)}, Negate: true},
			`s."id" NOT IN ($1, NULL, $2)`,
			[]any{int64(1), int64(3)},
		},
		{
			"and or not",
			query.And{Terms: []query.Predicate{
				query.Or{Terms: []query.Predicate{
					query.Comparison{Column: "id", Op: query.OpGt, Value: int64(10)},
					query.IsNull{Column: "id"},
				}},
				query.Not{Operand: query.Like{Column: "body", Pattern: "draft%"}},
			}},
			`((s."id" > $1) OR (s."id" IS NULL)) AND (NOT (s."body" LIKE $2))`,
			[]any{int64(10), "draft%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &binder{}
			got, err := renderPredicate(tt.pred, sourceAlias, b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.args, b.args)
		})
	}
}

func TestRenderSelection(t *testing.T) {
	sel := storage.Selection{
		Query: &query.Query{
			Source:        "docs",
			ContentColumn: "body",
			Where:         query.Comparison{Column: "lang", Op: query.OpEq, Value: "en"},
		},
		Exclude:    "docs_embedded",
		KeyColumns: []string{"id"},
		Limit:      10,
	}

	stmt, args, err := renderSelection(sel, []string{"id", "lang"})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT s."id", s."lang", s."body" AS "content" FROM "docs" AS s `+
			`WHERE (s."lang" = $1) AND s."id" IS NOT NULL `+
			`AND NOT EXISTS (SELECT 1 FROM "docs_embedded" AS t WHERE t."id" = s."id") LIMIT 10`,
		stmt)
	assert.Equal(t, []any{"en"}, args)

	sel.Exclude = ""
	sel.Limit = 0
	sel.Query.Where = query.True
	stmt, args, err = renderSelection(sel, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT s."id", s."body" AS "content" FROM "docs" AS s WHERE (TRUE)`, stmt)
	assert.Empty(t, args)

	sel.Exclude = "docs_embedded"
	sel.KeyColumns = nil
	_, _, err = renderSelection(sel, []string{"id"})
	assert.ErrorIs(t, err, core.ErrEmptyKeyColumns)
}

func TestRenderCreateTable(t *testing.T) {
	schema := &core.Schema{
		Columns: []core.Column{
			{Name: "id", Type: core.ColumnTypeInt64},
			{Name: "lang", Type: core.ColumnTypeString},
			{Name: core.EmbeddingColumn, Type: core.ColumnTypeVector},
		},
		Key: []string{"id", "lang"},
	}
	stmt, err := renderCreateTable("ds.docs", schema)
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE "ds"."docs" ("id" bigint, "lang" text, "ml_generate_embedding_result" vector, PRIMARY KEY ("id", "lang"))`,
		stmt)

	schema.Columns = append(schema.Columns, core.Column{Name: "bad", Type: core.ColumnType(99)})
	_, err = renderCreateTable("docs", schema)
	assert.ErrorIs(t, err, storage.ErrUnsupportedColumnType)
}

func TestRenderInsert(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "docs" ("id", "body") VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		renderInsert("docs", []string{"id", "body"}))
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		sql  string
		want core.ColumnType
		ok   bool
	}{
		{"text", core.ColumnTypeString, true},
		{"character varying(20)", core.ColumnTypeString, true},
		{"integer", core.ColumnTypeInt64, true},
		{"bigint", core.ColumnTypeInt64, true},
		{"numeric(10,2)", core.ColumnTypeFloat64, true},
		{"real", core.ColumnTypeFloat64, true},
		{"boolean", core.ColumnTypeBool, true},
		{"timestamp with time zone", core.ColumnTypeTimestamp, true},
		{"timestamp(3) without time zone", core.ColumnTypeTimestamp, true},
		{"vector(768)", core.ColumnTypeVector, true},
		{"jsonb", 0, false},
		{"bytea", 0, false},
	}
	for _, tt := range tests {
		got, ok := columnType(tt.sql)
		assert.Equal(t, tt.ok, ok, tt.sql)
		assert.Equal(t, tt.want, got, tt.sql)
	}

	// Every type we create must map back to itself.
	for typ := core.ColumnTypeString; typ <= core.ColumnTypeVector; typ++ {
		name, err := sqlType(typ)
		require.NoError(t, err)
		got, ok := columnType(name)
		assert.True(t, ok, name)
		assert.Equal(t, typ, got, name)
	}
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/db", migrateURL("postgresql://localhost/db"))
	assert.Equal(t, "pgx5://localhost/db", migrateURL("pgx5://localhost/db"))
}
