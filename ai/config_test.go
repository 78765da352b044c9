package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.Zero(t, cfg.Dimensions)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		// Should have default values
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderGemini),
			WithAPIKey("secret"),
			WithDimensions(256),
			WithTaskType("RETRIEVAL_DOCUMENT"),
			WithRequestTimeout(time.Second),
		)

		assert.Equal(t, ProviderGemini, cfg.Provider)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 256, cfg.Dimensions)
		assert.Equal(t, "RETRIEVAL_DOCUMENT", cfg.TaskType)
		assert.Equal(t, time.Second, cfg.RequestTimeout)
	})

	t.Run("with vertex", func(t *testing.T) {
		cfg := NewConfig(WithVertex("proj", "us-central1"))

		assert.Equal(t, "proj", cfg.Project)
		assert.Equal(t, "us-central1", cfg.Location)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: " OpenAI ", EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, ProviderOpenAI, cfg.Provider)
			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
		})
	}

	t.Run("gemini host untouched", func(t *testing.T) {
		cfg := &Config{Provider: ProviderGemini, EmbeddingHost: "http://proxy"}
		cfg.Normalize()
		assert.Equal(t, "http://proxy", cfg.EmbeddingHost)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "mock", cfg: &Config{Provider: ProviderMock}},
		{name: "gemini api key", cfg: &Config{Provider: ProviderGemini, APIKey: "k"}},
		{name: "gemini vertex", cfg: &Config{Provider: ProviderGemini, Project: "p", Location: "l"}},
		{name: "openai without host", cfg: &Config{Provider: ProviderOpenAI}, wantErr: "EmbeddingHost is required"},
		{name: "gemini without credentials", cfg: &Config{Provider: ProviderGemini}, wantErr: "APIKey or Project is required"},
		{name: "vertex without location", cfg: &Config{Provider: ProviderGemini, Project: "p"}, wantErr: "Location is required"},
		{name: "unknown provider", cfg: &Config{Provider: "bedrock"}, wantErr: "unknown provider"},
		{name: "negative dims", cfg: &Config{Provider: ProviderMock, Dimensions: -1}, wantErr: "Dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Resolve(t *testing.T) {
	cfg := NewConfig(WithDimensions(128), WithTaskType("SEMANTIC_SIMILARITY"))

	assert.Equal(t, EmbedderOptions{Dimensions: 128, TaskType: "SEMANTIC_SIMILARITY"}, cfg.Resolve(EmbedderOptions{}))
	assert.Equal(t, EmbedderOptions{Dimensions: 64, TaskType: "CLUSTERING"},
		cfg.Resolve(EmbedderOptions{Dimensions: 64, TaskType: "CLUSTERING"}))
}
