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

package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/embedfill/ai"
	"github.com/poiesic/embedfill/core"
)

// EmptyContentStatus is the status given to rows with NULL or empty content.
const EmptyContentStatus = "INVALID_ARGUMENT: content is empty"

// Defaults for TextBackend.
const (
	DefaultMaxRequestSize = 250
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 500 * time.Millisecond
)

// Backend embeds staged rows.
// Implementations must return exactly one row per input row, in input order,
// each carrying core.EmbeddingColumn and core.StatusColumn.
type Backend interface {
	Embed(ctx context.Context, model string, rows []core.Row, opts Options) ([]core.Row, error)
}

// TextBackend implements Backend over an ai.Provider.
type TextBackend struct {
	provider       ai.Provider
	pool           *ants.Pool
	maxRequestSize int
	maxAttempts    int
	retryDelay     time.Duration
	logger         *slog.Logger
}

var _ Backend = (*TextBackend)(nil)

// BackendOption configures a TextBackend.
type BackendOption func(*TextBackend) error

// WithConcurrency sets the number of sub-requests in flight.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithConcurrency(size int) BackendOption {
	return func(b *TextBackend) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if b.pool != nil {
			b.pool.Release()
		}
		b.pool = pool
		return nil
	}
}

// WithMaxRequestSize sets the maximum number of texts per provider request.
func WithMaxRequestSize(size int) BackendOption {
	return func(b *TextBackend) error {
		if size < 1 {
			return fmt.Errorf("max request size must be positive, got %d", size)
		}
		b.maxRequestSize = size
		return nil
	}
}

// WithRetry sets the attempts per sub-request and the base backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) BackendOption {
	return func(b *TextBackend) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		b.maxAttempts = maxAttempts
		b.retryDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) BackendOption {
	return func(b *TextBackend) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewTextBackend creates a backend that embeds the content column with provider.
// Call Release when done to free the worker pool.
func NewTextBackend(provider ai.Provider, opts ...BackendOption) (*TextBackend, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	b := &TextBackend{
		provider:       provider,
		pool:           pool,
		maxRequestSize: DefaultMaxRequestSize,
		maxAttempts:    DefaultMaxAttempts,
		retryDelay:     DefaultRetryDelay,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}
	b.logger = b.logger.With("component", "text-backend")
	return b, nil
}

// Release frees the worker pool. The backend should not be used afterwards.
func (b *TextBackend) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// subRequest is one provider call. indexes point back into the input rows.
type subRequest struct {
	indexes []int
	texts   []string
	vectors [][]float32
	err     error
}

// Embed blocks until every row has a result or the call fails.
func (b *TextBackend) Embed(ctx context.Context, model string, rows []core.Row, opts Options) ([]core.Row, error) {
	out := make([]core.Row, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	embedder, err := b.provider.Embedder(model, ai.EmbedderOptions{
		Dimensions: opts.OutputDimensionality,
		TaskType:   opts.TaskType,
	})
	if err != nil {
		return nil, &InvocationError{Model: model, Err: err}
	}

	var requests []*subRequest
	var current *subRequest
	for i, row := range rows {
		result := row.Clone()
		result[core.EmbeddingColumn] = nil
		result[core.StatusColumn] = ""
		out[i] = result

		text, ok := row.Content()
		if !ok || text == "" {
			result[core.StatusColumn] = EmptyContentStatus
			continue
		}
		if current == nil || len(current.texts) == b.maxRequestSize {
			current = &subRequest{}
			requests = append(requests, current)
		}
		current.indexes = append(current.indexes, i)
		current.texts = append(current.texts, text)
	}

	b.logger.Debug("embedding rows", "model", model, "rows", len(rows), "requests", len(requests))

	var wg sync.WaitGroup
	for _, req := range requests {
		wg.Add(1)
		submitErr := b.pool.Submit(func() {
			defer wg.Done()
			req.err = b.call(ctx, embedder, req)
		})
		if submitErr != nil {
			wg.Done()
			req.err = submitErr
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed int
	for _, req := range requests {
		if req.err != nil {
			if errors.Is(req.err, ErrResultCountMismatch) || errors.Is(req.err, ants.ErrPoolClosed) {
				return nil, &InvocationError{Model: model, Err: req.err}
			}
			status := StatusFor(req.err)
			for _, i := range req.indexes {
				out[i][core.StatusColumn] = status
			}
			failed += len(req.indexes)
			b.logger.Warn("embedding request failed", "model", model, "rows", len(req.indexes), "status", status)
			continue
		}
		for j, i := range req.indexes {
			vector := req.vectors[j]
			if opts.OutputDimensionality > 0 && len(vector) > opts.OutputDimensionality {
				vector = ai.TruncateVector(vector, opts.OutputDimensionality)
			}
			out[i][core.EmbeddingColumn] = vector
		}
	}

	if failed > 0 {
		b.logger.Info("embedded rows with failures", "model", model, "rows", len(rows), "failed", failed)
	}
	return out, nil
}

// call runs one sub-request with retries. Terminal errors are not retried.
func (b *TextBackend) call(ctx context.Context, embedder ai.Embedder, req *subRequest) error {
	return RetryWithBackoffIf(ctx, func() error {
		vectors, err := embedder.EmbedTexts(ctx, req.texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(req.texts) {
			return fmt.Errorf("%w: expected %d, received %d", ErrResultCountMismatch, len(req.texts), len(vectors))
		}
		for j, v := range vectors {
			if len(v) == 0 {
				return fmt.Errorf("empty embedding vector at index %d", j)
			}
		}
		req.vectors = vectors
		return nil
	}, func(err error) bool {
		return !errors.Is(err, ErrResultCountMismatch) && ClassifyError(err) == ClassRetryable
	}, b.maxAttempts, b.retryDelay)
}
