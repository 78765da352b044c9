package generate

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/storage"
)

// ProbeSize is the number of source rows embedded to create a destination.
const ProbeSize = 10

// ensureTarget creates the destination when it does not exist.
// It reports whether the table was created and how many probe rows were inserted.
func (g *Generator) ensureTarget(ctx context.Context, p *plan) (bool, int64, error) {
	exists, err := g.store.TableExists(ctx, p.req.TargetTable)
	if err != nil {
		return false, 0, fmt.Errorf("check destination: %w", err)
	}
	if exists {
		return false, 0, g.checkTarget(ctx, p)
	}

	source, err := g.store.TableSchema(ctx, p.req.SourceTable)
	if err != nil {
		return false, 0, fmt.Errorf("read source schema: %w", err)
	}
	schema, err := p.query.OutputSchema(source)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %w", storage.ErrColumnNotFound, err)
	}
	schema.Columns = append(schema.Columns, core.ResultColumns()...)
	schema.Key = slices.Clone(p.req.KeyColumns)

	accepted, err := g.probe(ctx, p)
	if err != nil {
		return false, 0, err
	}

	created := true
	if err := g.store.CreateTable(ctx, p.req.TargetTable, schema); err != nil {
		if !errors.Is(err, storage.ErrTableExists) {
			return false, 0, fmt.Errorf("create destination: %w", err)
		}
		// Another run created it first; the probe rows are still valid inserts.
		created = false
	}

	inserted, err := g.store.Insert(ctx, p.req.TargetTable, accepted)
	if err != nil {
		return created, 0, fmt.Errorf("insert probe rows: %w", err)
	}
	p.logger.Info("created destination", "columns", len(schema.Columns), "key", schema.Key, "probe_inserted", inserted)
	return created, inserted, nil
}

// probe embeds a few source rows and returns the accepted results.
func (g *Generator) probe(ctx context.Context, p *plan) ([]core.Row, error) {
	staged, err := g.store.Stage(ctx, storage.Selection{Query: p.query, Limit: ProbeSize})
	if err != nil {
		return nil, fmt.Errorf("stage probe rows: %w", err)
	}
	defer func() {
		if releaseErr := staged.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			p.logger.Warn("failed to release probe rows", "err", releaseErr)
		}
	}()

	rows := make([]core.Row, 0, staged.Len())
	for _, row := range staged.Rows() {
		if storage.HasNullKey(row, p.req.KeyColumns) {
			p.logger.Warn("skipping probe row with NULL key", "key", row.Key(p.req.KeyColumns))
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	results, err := g.embed(ctx, p, rows)
	if err != nil {
		return nil, err
	}
	return core.FilterAccepted(results), nil
}

// checkTarget verifies an existing destination can receive results.
// Missing key or result columns, retyped key or result columns, and carried
// columns whose values cannot be stored are fatal; other drift is logged.
func (g *Generator) checkTarget(ctx context.Context, p *plan) error {
	target, err := g.store.TableSchema(ctx, p.req.TargetTable)
	if err != nil {
		return fmt.Errorf("read destination schema: %w", err)
	}

	required := slices.Clone(p.req.KeyColumns)
	for _, c := range core.ResultColumns() {
		required = append(required, c.Name)
	}
	if missing := missingColumns(target, required); len(missing) > 0 {
		return fmt.Errorf("%w: %s lacks %v", ErrSchemaMismatch, p.req.TargetTable, missing)
	}
	for _, want := range core.ResultColumns() {
		if have, _ := target.Column(want.Name); have.Type != want.Type {
			return fmt.Errorf("%w: %s.%s is %s, want %s", ErrSchemaMismatch, p.req.TargetTable, want.Name, have.Type, want.Type)
		}
	}

	source, err := g.store.TableSchema(ctx, p.req.SourceTable)
	if err != nil {
		return fmt.Errorf("read source schema: %w", err)
	}
	expected, err := p.query.OutputSchema(source)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrColumnNotFound, err)
	}
	for _, col := range expected.Columns {
		have, ok := target.Column(col.Name)
		switch {
		case !ok:
			p.logger.Warn("destination lacks a selected column; its values will be dropped", "column", col.Name)
		case have.Type == col.Type:
		case slices.Contains(p.req.KeyColumns, col.Name):
			// Key values must compare equal to the stored ones for the anti-join.
			return fmt.Errorf("%w: key column %s.%s is %s, source has %s",
				ErrSchemaMismatch, p.req.TargetTable, col.Name, have.Type, col.Type)
		case !storage.Coercible(col.Type, have.Type):
			return fmt.Errorf("%w: %s.%s is %s and cannot hold %s values",
				ErrSchemaMismatch, p.req.TargetTable, col.Name, have.Type, col.Type)
		default:
			p.logger.Warn("destination column type differs", "column", col.Name, "source", col.Type, "destination", have.Type)
		}
	}
	if !slices.Equal(target.Key, p.req.KeyColumns) {
		p.logger.Warn("destination key differs from requested key", "destination", target.Key, "requested", p.req.KeyColumns)
	}
	return nil
}

// missingColumns returns the names in want that schema lacks.
func missingColumns(schema *core.Schema, want []string) []string {
	var missing []string
	for _, name := range want {
		if _, ok := schema.Column(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
