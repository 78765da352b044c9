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

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/embedfill/ai"
	"github.com/poiesic/embedfill/storage"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix namespaces embedding keys.
	DefaultPrefix = "embedfill:embedding"
	// DefaultTTL is how long cached vectors live.
	DefaultTTL = 7 * 24 * time.Hour
)

// ErrCorruptEntry is returned when a cached value is not a float32 vector.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// Option configures a Provider.
type Option func(*Provider)

// WithTTL sets the expiry of cached vectors. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(p *Provider) {
		p.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider wraps an ai.Provider and serves repeated texts from Redis.
type Provider struct {
	inner  ai.Provider
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider wraps inner with a cache stored in client.
func NewProvider(inner ai.Provider, client *redis.Client, opts ...Option) *Provider {
	p := &Provider{
		inner:  inner,
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "embedding-cache")
	return p
}

// Dial connects to the Redis server at redisURL and verifies the connection.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Embedder returns a caching embedder around the wrapped provider's embedder.
func (p *Provider) Embedder(model string, opts ai.EmbedderOptions) (ai.Embedder, error) {
	inner, err := p.inner.Embedder(model, opts)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		inner:    inner,
		provider: p,
		model:    model,
		opts:     opts,
	}, nil
}

// Close closes the wrapped provider and the Redis client.
func (p *Provider) Close() error {
	return errors.Join(p.inner.Close(), p.client.Close())
}

// Embedder is an ai.Embedder that consults Redis before the wrapped embedder.
type Embedder struct {
	inner    ai.Embedder
	provider *Provider
	model    string
	opts     ai.EmbedderOptions
}

var _ ai.Embedder = (*Embedder)(nil)

// EmbedText embeds a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts returns cached vectors where present and embeds the rest.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = EmbeddingKey(e.provider.prefix, e.model, e.opts, text)
	}

	vectors := e.lookup(ctx, keys)

	var missing []int
	for i, v := range vectors {
		if v == nil {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		e.provider.logger.Debug("cache hit", "count", len(texts))
		return vectors, nil
	}

	missTexts := make([]string, len(missing))
	for j, i := range missing {
		missTexts[j] = texts[i]
	}
	fresh, err := e.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	pipe := e.provider.client.Pipeline()
	for j, i := range missing {
		vectors[i] = fresh[j]
		pipe.Set(ctx, keys[i], encodeVector(fresh[j]), e.provider.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		e.provider.logger.Warn("failed to store embeddings", "count", len(missing), "err", err)
	}

	e.provider.logger.Debug("cache lookup", "hits", len(texts)-len(missing), "misses", len(missing))
	return vectors, nil
}

// lookup returns one slot per key; misses and unreadable entries are nil.
func (e *Embedder) lookup(ctx context.Context, keys []string) [][]float32 {
	vectors := make([][]float32, len(keys))
	values, err := e.provider.client.MGet(ctx, keys...).Result()
	if err != nil {
		e.provider.logger.Warn("cache lookup failed", "err", err)
		return vectors
	}
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		v, err := decodeVector([]byte(s))
		if err != nil {
			e.provider.logger.Warn("ignoring cache entry", "key", keys[i], "err", err)
			continue
		}
		vectors[i] = v
	}
	return vectors
}

func encodeVector(v []float32) []byte {
	return storage.MarshalVector(v)
}

func decodeVector(data []byte) ([]float32, error) {
	v, err := storage.UnmarshalVector(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrCorruptEntry)
	}
	return v, nil
}
