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

package openai

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/embedfill/ai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
// Embedders are created on first use and reused per model and options.
type Provider struct {
	config    *ai.Config
	logger    *slog.Logger
	mu        sync.Mutex
	embedders map[string]*Embedder
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		logger:    slog.Default().With("component", "openai-provider"),
		embedders: make(map[string]*Embedder),
	}, nil
}

// Embedder returns the embedder for model.
func (p *Provider) Embedder(model string, opts ai.EmbedderOptions) (ai.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := fmt.Sprintf("%s|%d|%s", model, opts.Dimensions, opts.TaskType)
	if e, ok := p.embedders[key]; ok {
		return e, nil
	}

	// Create embedder (using internal constructor for concrete type)
	e, err := newEmbedder(p.config, model, opts)
	if err != nil {
		return nil, err
	}
	p.embedders[key] = e
	return e, nil
}

// Close releases resources held by the provider.
// The underlying HTTP clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.embedders)
	return nil
}
