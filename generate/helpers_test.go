package generate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/embed"
	"github.com/poiesic/embedfill/storage"
	"github.com/poiesic/embedfill/storage/badger"
	"github.com/stretchr/testify/require"
)

// scriptedBackend returns a status chosen per row and records every call.
type scriptedBackend struct {
	mu     sync.Mutex
	status func(row core.Row) string
	err    error
	drop   bool
	calls  [][]core.Row
}

func (b *scriptedBackend) Embed(ctx context.Context, model string, rows []core.Row, opts embed.Options) ([]core.Row, error) {
	b.mu.Lock()
	b.calls = append(b.calls, rows)
	statusFn, err, drop := b.status, b.err, b.drop
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	out := make([]core.Row, 0, len(rows))
	for _, row := range rows {
		result := row.Clone()
		status := ""
		if statusFn != nil {
			status = statusFn(row)
		}
		result[core.StatusColumn] = status
		if status == "" || status == "SUCCESS" {
			text, _ := row.Content()
			result[core.EmbeddingColumn] = []float32{float32(len(text)), 1}
		} else {
			result[core.EmbeddingColumn] = nil
		}
		out = append(out, result)
	}
	if drop && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (b *scriptedBackend) setStatus(fn func(row core.Row) string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = fn
}

// batchSizes returns the size of every backend call.
func (b *scriptedBackend) batchSizes() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	sizes := make([]int, len(b.calls))
	for i, c := range b.calls {
		sizes[i] = len(c)
	}
	return sizes
}

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

var docsSchema = &core.Schema{
	Columns: []core.Column{
		{Name: "id", Type: core.ColumnTypeInt64},
		{Name: "body", Type: core.ColumnTypeString},
		{Name: "lang", Type: core.ColumnTypeString},
	},
	Key: []string{"id"},
}

// docRows returns n rows with ids 1..n, alternating between en and de.
func docRows(n int) []core.Row {
	rows := make([]core.Row, n)
	for i := range rows {
		lang := "en"
		if i%2 == 1 {
			lang = "de"
		}
		rows[i] = core.Row{"id": int64(i + 1), "body": fmt.Sprintf("document %d", i+1), "lang": lang}
	}
	return rows
}

// targetSchemaFor is the destination schema of a full projection of docsSchema.
func targetSchemaFor() *core.Schema {
	return &core.Schema{
		Columns: append([]core.Column{
			{Name: "id", Type: core.ColumnTypeInt64},
			{Name: "body", Type: core.ColumnTypeString},
			{Name: "lang", Type: core.ColumnTypeString},
			{Name: core.ContentColumn, Type: core.ColumnTypeString},
		}, core.ResultColumns()...),
		Key: []string{"id"},
	}
}

func setupStore(t *testing.T, rows []core.Row) storage.TableStore {
	t.Helper()
	store, err := badger.NewMemoryTableStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, badger.SeedTable(context.Background(), store, "docs", docsSchema, rows))
	return store
}

func newTestGenerator(t *testing.T, store storage.TableStore, backend embed.Backend, opts ...Option) *Generator {
	t.Helper()
	g, err := New(store, backend, opts...)
	require.NoError(t, err)
	return g
}

func docsRequest(options string) Request {
	return Request{
		SourceTable:   "docs",
		TargetTable:   "docs_embedded",
		MLModel:       "test-model",
		ContentColumn: "body",
		KeyColumns:    []string{"id"},
		OptionsString: options,
	}
}

// targetRows returns the destination rows ordered by id.
func targetRows(t *testing.T, store storage.TableStore, table string) []core.Row {
	t.Helper()
	var rows []core.Row
	require.NoError(t, store.Scan(context.Background(), table, func(row core.Row) error {
		rows = append(rows, row)
		return nil
	}))
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["id"].(int64) < rows[j]["id"].(int64)
	})
	return rows
}

func ids(rows []core.Row) []int64 {
	out := make([]int64, len(rows))
	for i, row := range rows {
		out[i] = row["id"].(int64)
	}
	return out
}

func idRange(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
