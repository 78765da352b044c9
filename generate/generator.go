// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/embed"
	"github.com/poiesic/embedfill/options"
	"github.com/poiesic/embedfill/query"
	"github.com/poiesic/embedfill/storage"
)

// Request names the tables and columns of a run.
type Request struct {
	SourceTable   string
	TargetTable   string
	MLModel       string
	ContentColumn string
	KeyColumns    []string
	// OptionsString is a JSON object of run options. Empty selects defaults.
	OptionsString string
}

// StopReason explains why the loop ended.
type StopReason string

const (
	// StopConverged means the last iteration inserted no rows.
	StopConverged StopReason = "converged"
	// StopTimeBudget means the run used up termination_time_secs.
	StopTimeBudget StopReason = "time_budget"
)

// RunState is the mutable state of one run.
type RunState struct {
	StartedAt time.Time
	Iteration int
	// RowsAffected is the insert count of the latest iteration.
	RowsAffected   int64
	TotalInserted  int64
	TotalRetryable int
	// TotalFailed counts inserted rows that carry a status but no embedding.
	TotalFailed int
}

// Result summarizes a finished run.
type Result struct {
	RunState
	// TargetCreated reports whether this run created the destination.
	TargetCreated bool
	// ProbeInserted counts rows written while creating the destination.
	ProbeInserted int64
	Stop          StopReason
	Elapsed       time.Duration
}

// Generator runs embedding materialization against a table store.
type Generator struct {
	store    storage.TableStore
	backend  embed.Backend
	clock    func() time.Time
	logger   *slog.Logger
	progress io.Writer
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the time source used for the termination budget.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithProgress writes per-iteration progress to w.
func WithProgress(w io.Writer) Option {
	return func(g *Generator) {
		g.progress = w
	}
}

// New creates a Generator.
func New(store storage.TableStore, backend embed.Backend, opts ...Option) (*Generator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if backend == nil {
		return nil, ErrBackendRequired
	}
	g := &Generator{
		store:   store,
		backend: backend,
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "generator")
	return g, nil
}

// plan is a validated request with its resolved configuration.
type plan struct {
	req    Request
	config *options.Config
	ml     embed.Options
	query  *query.Query
	logger *slog.Logger
}

// Run materializes embeddings for req.SourceTable into req.TargetTable.
// Validation happens before any table is read or written. Store and backend
// errors abort the run; rows already inserted stay, and a new run resumes
// where this one stopped.
func (g *Generator) Run(ctx context.Context, req Request) (*Result, error) {
	p, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	state := RunState{StartedAt: g.clock()}
	p.logger.Info("starting run",
		"batch_size", p.config.BatchSize,
		"termination", p.config.TerminationTime,
		"where", p.config.WhereClause)

	result := &Result{}
	created, probed, err := g.ensureTarget(ctx, p)
	if err != nil {
		return nil, err
	}
	result.TargetCreated = created
	result.ProbeInserted = probed

	var tracker *ProgressTracker
	if g.progress != nil {
		tracker = NewProgressTracker(g.progress)
		tracker.Start()
		defer tracker.Finish()
	}

	stop, err := g.converge(ctx, p, &state, tracker)
	result.RunState = state
	result.Elapsed = g.clock().Sub(state.StartedAt)
	if err != nil {
		return result, err
	}
	result.Stop = stop

	p.logger.Info("run complete",
		"stop", stop,
		"iterations", state.Iteration,
		"inserted", state.TotalInserted+probed,
		"retryable", state.TotalRetryable,
		"failed", state.TotalFailed,
		"elapsed", result.Elapsed)
	return result, nil
}

// prepare validates req and resolves its options. It has no side effects.
func (g *Generator) prepare(req Request) (*plan, error) {
	if err := core.ValidateTableName(req.SourceTable); err != nil {
		return nil, fmt.Errorf("%w: source table: %w", ErrInvalidRequest, err)
	}
	if err := core.ValidateTableName(req.TargetTable); err != nil {
		return nil, fmt.Errorf("%w: target table: %w", ErrInvalidRequest, err)
	}
	if req.SourceTable == req.TargetTable {
		return nil, fmt.Errorf("%w: source and target are both %s", ErrInvalidRequest, req.SourceTable)
	}
	if req.MLModel == "" {
		return nil, fmt.Errorf("%w: ml model is required", ErrInvalidRequest)
	}
	if err := core.ValidateColumnName(req.ContentColumn); err != nil {
		return nil, fmt.Errorf("%w: content column: %w", ErrInvalidRequest, err)
	}
	if err := core.ValidateKeyColumns(req.KeyColumns); err != nil {
		return nil, fmt.Errorf("%w: key columns: %w", ErrInvalidRequest, err)
	}
	for _, k := range req.KeyColumns {
		if k == core.ContentColumn || k == core.EmbeddingColumn || k == core.StatusColumn {
			return nil, fmt.Errorf("%w: key column %q is reserved", ErrInvalidRequest, k)
		}
	}

	config, err := options.Resolve(req.OptionsString)
	if err != nil {
		return nil, err
	}
	ml, err := embed.ParseOptions(config.MLOptions)
	if err != nil {
		return nil, options.WrapConfigurationError(options.KeyMLOptions, err)
	}

	q, err := query.Builder{}.Build(query.Params{
		Source:        req.SourceTable,
		ContentColumn: req.ContentColumn,
		Projection:    config.ProjectionColumns,
		Where:         config.Where,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	// Key columns must survive the projection for the anti-join to work.
	q = q.WithColumns(req.KeyColumns...)

	return &plan{
		req:    req,
		config: config,
		ml:     ml,
		query:  q,
		logger: g.logger.With("source", req.SourceTable, "target", req.TargetTable, "model", req.MLModel),
	}, nil
}

// converge runs iterations until one inserts nothing or the budget is spent.
func (g *Generator) converge(ctx context.Context, p *plan, state *RunState, tracker *ProgressTracker) (StopReason, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		state.Iteration++
		if err := g.iterate(ctx, p, state); err != nil {
			return "", fmt.Errorf("iteration %d: %w", state.Iteration, err)
		}
		if tracker != nil {
			tracker.Iteration(state.RowsAffected)
		}

		if state.RowsAffected == 0 {
			return StopConverged, nil
		}
		if g.clock().Sub(state.StartedAt) >= p.config.TerminationTime {
			p.logger.Warn("time budget exhausted", "iterations", state.Iteration, "inserted", state.TotalInserted)
			return StopTimeBudget, nil
		}
	}
}

// iterate runs one select, embed, filter, insert cycle.
func (g *Generator) iterate(ctx context.Context, p *plan, state *RunState) (err error) {
	staged, err := g.store.Stage(ctx, storage.Selection{
		Query:      p.query,
		Exclude:    p.req.TargetTable,
		KeyColumns: p.req.KeyColumns,
		Limit:      p.config.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("stage pending rows: %w", err)
	}
	defer func() {
		if releaseErr := staged.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			p.logger.Warn("failed to release staged rows", "err", releaseErr)
		}
	}()

	state.RowsAffected = 0
	rows := staged.Rows()
	if len(rows) == 0 {
		p.logger.Debug("no pending rows", "iteration", state.Iteration)
		return nil
	}

	results, err := g.embed(ctx, p, rows)
	if err != nil {
		return err
	}

	accepted := core.FilterAccepted(results)
	retryable := len(results) - len(accepted)
	failed := 0
	for _, row := range accepted {
		if row[core.EmbeddingColumn] == nil {
			failed++
		}
	}

	inserted, err := g.store.Insert(ctx, p.req.TargetTable, accepted)
	if err != nil {
		return fmt.Errorf("insert results: %w", err)
	}

	state.RowsAffected = inserted
	state.TotalInserted += inserted
	state.TotalRetryable += retryable
	state.TotalFailed += failed

	p.logger.Info("iteration complete",
		"iteration", state.Iteration,
		"staged", len(rows),
		"inserted", inserted,
		"retryable", retryable,
		"failed", failed)
	return nil
}

// embed calls the backend and enforces one result per input row.
func (g *Generator) embed(ctx context.Context, p *plan, rows []core.Row) ([]core.Row, error) {
	results, err := g.backend.Embed(ctx, p.req.MLModel, rows, p.ml)
	if err != nil {
		return nil, fmt.Errorf("embed rows: %w", err)
	}
	if len(results) != len(rows) {
		return nil, fmt.Errorf("%w: expected %d, received %d", embed.ErrResultCountMismatch, len(rows), len(results))
	}
	return results, nil
}
