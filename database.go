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

// Package embedfill wires a table store, an embedding provider and the
// generator into a single handle.
package embedfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/embedfill/ai"
	"github.com/poiesic/embedfill/ai/cache"
	"github.com/poiesic/embedfill/ai/gemini"
	"github.com/poiesic/embedfill/ai/mock"
	"github.com/poiesic/embedfill/ai/openai"
	"github.com/poiesic/embedfill/embed"
	"github.com/poiesic/embedfill/generate"
	"github.com/poiesic/embedfill/ingestion"
	"github.com/poiesic/embedfill/storage"
	"github.com/poiesic/embedfill/storage/badger"
	"github.com/poiesic/embedfill/storage/postgres"
)

type Database struct {
	store       storage.TableStore
	provider    ai.Provider
	backendOpts []embed.BackendOption
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig    *ai.Config
	redisURL    string
	cacheOpts   []cache.Option
	backendOpts []embed.BackendOption
	inMemory    bool
}

// WithAIConfig selects and configures the embedding provider.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithEmbeddingCache caches embeddings in the Redis server at redisURL.
func WithEmbeddingCache(redisURL string, opts ...cache.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.redisURL = redisURL
		o.cacheOpts = opts
	}
}

// WithBackendOptions tunes the embedding backend used by Generate.
func WithBackendOptions(opts ...embed.BackendOption) DatabaseOption {
	return func(o *databaseOptions) {
		o.backendOpts = append(o.backendOpts, opts...)
	}
}

// WithInMemory keeps the embedded store in memory. The path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func applyOptions(opts []DatabaseOption) *databaseOptions {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// NewDatabase opens the embedded BadgerDB store at filePath.
func NewDatabase(ctx context.Context, filePath string, opts ...DatabaseOption) (*Database, error) {
	options := applyOptions(opts)
	store, err := badger.Open(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}
	return newDatabase(ctx, store, options)
}

// NewPostgresDatabase migrates and opens the PostgreSQL database at url.
func NewPostgresDatabase(ctx context.Context, url string, opts ...DatabaseOption) (*Database, error) {
	options := applyOptions(opts)
	store, err := postgres.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return newDatabase(ctx, store, options)
}

func newDatabase(ctx context.Context, store storage.TableStore, options *databaseOptions) (*Database, error) {
	provider, err := NewProvider(ctx, options.aiConfig)
	if err != nil {
		store.Close()
		return nil, err
	}

	if options.redisURL != "" {
		client, err := cache.Dial(ctx, options.redisURL)
		if err != nil {
			provider.Close()
			store.Close()
			return nil, err
		}
		provider = cache.NewProvider(provider, client, options.cacheOpts...)
	}

	return &Database{
		store:       store,
		provider:    provider,
		backendOpts: options.backendOpts,
		logger:      slog.Default(),
	}, nil
}

// NewProvider creates the embedding provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg *ai.Config) (ai.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg)
	case ai.ProviderGemini:
		return gemini.NewProvider(ctx, cfg)
	case ai.ProviderMock:
		provider := mock.NewMockProviderWithEmbedder(mock.NewMockEmbedder())
		provider.GetMockEmbedder().Dimensions = cfg.Dimensions
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func (db *Database) Close() error {
	var errs []error
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing table store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) Store() storage.TableStore {
	return db.store
}

func (db *Database) Provider() ai.Provider {
	return db.provider
}

// Generate materializes embeddings for req with a backend built from the
// database's provider. The backend is released before Generate returns.
func (db *Database) Generate(ctx context.Context, req generate.Request, opts ...generate.Option) (*generate.Result, error) {
	backend, err := embed.NewTextBackend(db.provider, db.backendOpts...)
	if err != nil {
		return nil, err
	}
	defer backend.Release()

	g, err := generate.New(db.store, backend, opts...)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx, req)
}

func (db *Database) NewLoader(opts ...ingestion.Option) (*ingestion.Loader, error) {
	return ingestion.NewLoader(db.store, opts...)
}

// Export writes every row of table to w as JSON lines.
func (db *Database) Export(ctx context.Context, table string, w io.Writer) (int64, error) {
	return ingestion.Export(ctx, db.store, table, w)
}
