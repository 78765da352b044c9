package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/query"
	"github.com/poiesic/embedfill/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) storage.TableStore {
	t.Helper()
	store, err := NewMemoryTableStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func docsSchema() *core.Schema {
	return &core.Schema{
		Columns: []core.Column{
			{Name: "id", Type: core.ColumnTypeInt64},
			{Name: "lang", Type: core.ColumnTypeString},
			{Name: "body", Type: core.ColumnTypeString},
		},
		Key: []string{"id"},
	}
}

func docRows(n int) []core.Row {
	rows := make([]core.Row, n)
	for i := range rows {
		lang := "en"
		if i%2 == 1 {
			lang = "de"
		}
		rows[i] = core.Row{"id": int64(i + 1), "lang": lang, "body": fmt.Sprintf("document %d", i+1)}
	}
	return rows
}

func targetSchema() *core.Schema {
	return &core.Schema{
		Columns: []core.Column{
			{Name: "id", Type: core.ColumnTypeInt64},
			{Name: "lang", Type: core.ColumnTypeString},
			{Name: "body", Type: core.ColumnTypeString},
			{Name: core.ContentColumn, Type: core.ColumnTypeString},
			{Name: core.EmbeddingColumn, Type: core.ColumnTypeVector},
			{Name: core.StatusColumn, Type: core.ColumnTypeString},
		},
		Key: []string{"id"},
	}
}

func TestCreateTable(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	exists, err := store.TableExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateTable(ctx, "docs", docsSchema()))

	exists, err = store.TableExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)

	schema, err := store.TableSchema(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, docsSchema(), schema)

	err = store.CreateTable(ctx, "docs", docsSchema())
	assert.ErrorIs(t, err, storage.ErrTableExists)
}

func TestCreateTable_InvalidSchema(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	tests := []struct {
		name    string
		table   string
		schema  *core.Schema
		wantErr error
	}{
		{
			name:    "invalid table name",
			table:   "docs; drop",
			schema:  docsSchema(),
			wantErr: core.ErrInvalidIdentifier,
		},
		{
			name:    "no columns",
			table:   "empty",
			schema:  &core.Schema{},
			wantErr: storage.ErrInvalidSchema,
		},
		{
			name:  "key column missing",
			table: "bad_key",
			schema: &core.Schema{
				Columns: []core.Column{{Name: "id", Type: core.ColumnTypeInt64}},
				Key:     []string{"uid"},
			},
			wantErr: storage.ErrColumnNotFound,
		},
		{
			name:  "duplicate column",
			table: "dup",
			schema: &core.Schema{
				Columns: []core.Column{{Name: "id", Type: core.ColumnTypeInt64}, {Name: "id", Type: core.ColumnTypeString}},
			},
			wantErr: core.ErrDuplicateColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.CreateTable(ctx, tt.table, tt.schema)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTableSchema_NotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.TableSchema(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrTableNotFound)
}

func TestListTables(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.NoError(t, store.CreateTable(ctx, "zeta", docsSchema()))
	require.NoError(t, store.CreateTable(ctx, "alpha", docsSchema()))
	require.NoError(t, store.CreateTable(ctx, "corpus.docs", docsSchema()))

	names, err := store.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "corpus.docs", "zeta"}, names)
}

func TestInsert_SkipsExistingKeys(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.CreateTable(ctx, "docs", docsSchema()))

	n, err := store.Insert(ctx, "docs", docRows(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.Insert(ctx, "docs", docRows(5))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Duplicates within one call count once.
	dup := core.Row{"id": int64(9), "lang": "en", "body": "x"}
	n, err = store.Insert(ctx, "docs", []core.Row{dup, dup.Clone()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count := 0
	require.NoError(t, store.Scan(ctx, "docs", func(core.Row) error { count++; return nil }))
	assert.Equal(t, 6, count)
}

func TestInsert_Errors(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.CreateTable(ctx, "docs", docsSchema()))

	_, err := store.Insert(ctx, "missing", docRows(1))
	assert.ErrorIs(t, err, storage.ErrTableNotFound)

	_, err = store.Insert(ctx, "docs", []core.Row{{"id": nil, "body": "x"}})
	assert.ErrorIs(t, err, storage.ErrNullKey)

	_, err = store.Insert(ctx, "docs", []core.Row{{"id": "one", "body": "x"}})
	assert.ErrorIs(t, err, storage.ErrTypeMismatch)
}

func TestInsert_NormalizesValues(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	schema := &core.Schema{
		Columns: []core.Column{
			{Name: "id", Type: core.ColumnTypeInt64},
			{Name: "score", Type: core.ColumnTypeFloat64},
			{Name: "at", Type: core.ColumnTypeTimestamp},
			{Name: "vec", Type: core.ColumnTypeVector},
		},
		Key: []string{"id"},
	}
	require.NoError(t, store.CreateTable(ctx, "t", schema))

	_, err := store.Insert(ctx, "t", []core.Row{{
		"id":    int(1),
		"score": int64(2),
		"at":    "2025-03-04T05:06:07.123456789Z",
		"vec":   []float64{1, 2},
		"extra": "dropped",
	}})
	require.NoError(t, err)

	var got []core.Row
	require.NoError(t, store.Scan(ctx, "t", func(r core.Row) error { got = append(got, r); return nil }))
	require.Len(t, got, 1)
	assert.Equal(t, core.Row{
		"id":    int64(1),
		"score": float64(2),
		"at":    time.Date(2025, 3, 4, 5, 6, 7, 123456000, time.UTC),
		"vec":   []float32{1, 2},
	}, got[0])
}

func TestInsert_UnkeyedTable(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	schema := docsSchema()
	schema.Key = nil
	require.NoError(t, store.CreateTable(ctx, "log", schema))

	n, err := store.Insert(ctx, "log", append(docRows(2), docRows(2)...))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestStage(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, SeedTable(ctx, store, "docs", docsSchema(), docRows(10)))
	require.NoError(t, store.CreateTable(ctx, "target", targetSchema()))

	where, err := query.ParsePredicate("lang = 'en'")
	require.NoError(t, err)
	q, err := query.Builder{}.Build(query.Params{Source: "docs", ContentColumn: "body", Where: where})
	require.NoError(t, err)

	t.Run("filter and projection", func(t *testing.T) {
		staged, err := store.Stage(ctx, storage.Selection{Query: q})
		require.NoError(t, err)
		defer staged.Release(ctx)

		require.Equal(t, 5, staged.Len())
		for _, row := range staged.Rows() {
			assert.Equal(t, "en", row["lang"])
			assert.Equal(t, row["body"], row[core.ContentColumn])
		}
	})

	t.Run("limit", func(t *testing.T) {
		staged, err := store.Stage(ctx, storage.Selection{Query: q, Limit: 2})
		require.NoError(t, err)
		defer staged.Release(ctx)
		assert.Equal(t, 2, staged.Len())
	})

	t.Run("anti-join", func(t *testing.T) {
		first, err := store.Stage(ctx, storage.Selection{Query: q, Limit: 3})
		require.NoError(t, err)
		rows := first.Rows()
		for _, r := range rows {
			r[core.EmbeddingColumn] = []float32{1}
			r[core.StatusColumn] = ""
		}
		n, err := store.Insert(ctx, "target", rows)
		require.NoError(t, err)
		require.Equal(t, int64(3), n)
		require.NoError(t, first.Release(ctx))

		rest, err := store.Stage(ctx, storage.Selection{Query: q, Exclude: "target", KeyColumns: []string{"id"}})
		require.NoError(t, err)
		defer rest.Release(ctx)
		assert.Equal(t, 2, rest.Len())
		for _, r := range rest.Rows() {
			for _, done := range rows {
				assert.NotEqual(t, done["id"], r["id"])
			}
		}
	})

	t.Run("snapshot is not re-evaluated", func(t *testing.T) {
		staged, err := store.Stage(ctx, storage.Selection{Query: q, Exclude: "target", KeyColumns: []string{"id"}})
		require.NoError(t, err)
		defer staged.Release(ctx)
		before := staged.Len()

		rows := staged.Rows()
		for _, r := range rows {
			r[core.StatusColumn] = ""
		}
		_, err = store.Insert(ctx, "target", rows)
		require.NoError(t, err)
		assert.Equal(t, before, staged.Len())
	})

	t.Run("release", func(t *testing.T) {
		staged, err := store.Stage(ctx, storage.Selection{Query: q})
		require.NoError(t, err)
		require.NoError(t, staged.Release(ctx))
		require.NoError(t, staged.Release(ctx))
		assert.Equal(t, 0, staged.Len())
	})
}

func TestStage_AntiJoinOnNonKeyColumns(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, SeedTable(ctx, store, "docs", docsSchema(), docRows(4)))

	target := targetSchema()
	target.Key = []string{"lang", "id"}
	require.NoError(t, store.CreateTable(ctx, "target", target))
	_, err := store.Insert(ctx, "target", []core.Row{{"id": int64(1), "lang": "en", core.StatusColumn: ""}})
	require.NoError(t, err)

	q, err := query.Builder{}.Build(query.Params{Source: "docs", ContentColumn: "body"})
	require.NoError(t, err)
	staged, err := store.Stage(ctx, storage.Selection{Query: q, Exclude: "target", KeyColumns: []string{"id"}})
	require.NoError(t, err)
	defer staged.Release(ctx)
	assert.Equal(t, 3, staged.Len())
}

func TestStage_NullKeysAreNotSelected(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	schema := docsSchema()
	schema.Key = nil
	rows := docRows(3)
	rows[1]["lang"] = nil
	require.NoError(t, SeedTable(ctx, store, "docs", schema, rows))

	target := targetSchema()
	target.Key = []string{"id", "lang"}
	require.NoError(t, store.CreateTable(ctx, "target", target))

	q, err := query.Builder{}.Build(query.Params{Source: "docs", ContentColumn: "body"})
	require.NoError(t, err)
	staged, err := store.Stage(ctx, storage.Selection{Query: q, Exclude: "target", KeyColumns: []string{"id", "lang"}})
	require.NoError(t, err)
	defer staged.Release(ctx)
	assert.Equal(t, 2, staged.Len())
}

func TestStage_Errors(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, SeedTable(ctx, store, "docs", docsSchema(), docRows(2)))

	q, err := query.Builder{}.Build(query.Params{Source: "docs", ContentColumn: "body"})
	require.NoError(t, err)

	_, err = store.Stage(ctx, storage.Selection{})
	assert.ErrorIs(t, err, storage.ErrInvalidSelection)

	_, err = store.Stage(ctx, storage.Selection{Query: q, Exclude: "missing", KeyColumns: []string{"id"}})
	assert.ErrorIs(t, err, storage.ErrTableNotFound)

	missing, err := query.Builder{}.Build(query.Params{Source: "nope", ContentColumn: "body"})
	require.NoError(t, err)
	_, err = store.Stage(ctx, storage.Selection{Query: missing})
	assert.ErrorIs(t, err, storage.ErrTableNotFound)

	badContent, err := query.Builder{}.Build(query.Params{Source: "docs", ContentColumn: "text"})
	require.NoError(t, err)
	_, err = store.Stage(ctx, storage.Selection{Query: badContent})
	assert.ErrorIs(t, err, storage.ErrColumnNotFound)

	where, err := query.ParsePredicate("lang > 3")
	require.NoError(t, err)
	mismatch, err := query.Builder{}.Build(query.Params{Source: "docs", ContentColumn: "body", Where: where})
	require.NoError(t, err)
	_, err = store.Stage(ctx, storage.Selection{Query: mismatch})
	assert.ErrorIs(t, err, query.ErrTypeMismatch)
}

func TestClosedStore(t *testing.T) {
	store, err := NewMemoryTableStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.ListTables(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStage_AntiJoinCoercesKeysToTargetTypes(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, SeedTable(ctx, store, "docs", docsSchema(), docRows(6)))

	for _, key := range [][]string{{"id"}, {"lang", "id"}} {
		target := targetSchema()
		target.Columns[0].Type = core.ColumnTypeFloat64
		target.Key = key
		name := fmt.Sprintf("target_%d", len(key))
		require.NoError(t, store.CreateTable(ctx, name, target))
		_, err := store.Insert(ctx, name, []core.Row{
			{"id": int64(1), "lang": "en", core.StatusColumn: ""},
			{"id": int64(2), "lang": "de", core.StatusColumn: ""},
		})
		require.NoError(t, err)

		q, err := query.Builder{}.Build(query.Params{Source: "docs", ContentColumn: "body"})
		require.NoError(t, err)
		staged, err := store.Stage(ctx, storage.Selection{Query: q, Exclude: name, KeyColumns: []string{"id"}})
		require.NoError(t, err)

		var got []int64
		for _, row := range staged.Rows() {
			got = append(got, row["id"].(int64))
		}
		assert.ElementsMatch(t, []int64{3, 4, 5, 6}, got, "key %v", key)
		require.NoError(t, staged.Release(ctx))
	}
}
