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

package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Provider selects the embedding service implementation.
	// One of ProviderOpenAI, ProviderGemini, ProviderMock.
	Provider string

	// EmbeddingHost is the base URL for OpenAI-compatible embedding APIs.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// APIKey authenticates against the embedding service.
	// Local OpenAI-compatible servers usually accept any value.
	APIKey string

	// Project and Location select Vertex AI for the Gemini provider.
	// When Project is empty the Gemini API is used with APIKey.
	Project  string
	Location string

	// Dimensions is the default output dimensionality. Zero keeps the model's native size.
	Dimensions int

	// TaskType is the default embedding task hint, e.g. "RETRIEVAL_DOCUMENT".
	TaskType string

	// RequestTimeout bounds a single embedding request. Zero means no timeout.
	RequestTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the provider kind.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithVertex routes Gemini requests through Vertex AI.
func WithVertex(project, location string) ConfigOption {
	return func(c *Config) {
		c.Project = project
		c.Location = location
	}
}

// WithDimensions sets the default output dimensionality.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithTaskType sets the default task type hint.
func WithTaskType(taskType string) ConfigOption {
	return func(c *Config) {
		c.TaskType = taskType
	}
}

// WithRequestTimeout bounds each embedding request.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		EmbeddingHost:  "http://localhost:11434/v1",
		RequestTimeout: 2 * time.Minute,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithDimensions(256),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to the OpenAI host if missing, which is
// required by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == ProviderOpenAI && c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
	case ProviderGemini:
		if c.Project == "" && c.APIKey == "" {
			return errors.New("ai config: APIKey or Project is required for gemini")
		}
		if c.Project != "" && c.Location == "" {
			return errors.New("ai config: Location is required with Project")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions must not be negative")
	}
	if c.RequestTimeout < 0 {
		return errors.New("ai config: RequestTimeout must not be negative")
	}
	return nil
}

// Resolve merges per-embedder options over the configured defaults.
func (c *Config) Resolve(opts EmbedderOptions) EmbedderOptions {
	if opts.Dimensions == 0 {
		opts.Dimensions = c.Dimensions
	}
	if opts.TaskType == "" {
		opts.TaskType = c.TaskType
	}
	return opts
}
