package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/embedfill/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingServer serves /v1/embeddings, answering each input with a
// vector whose first component is the input's length.
func newEmbeddingServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			data[i] = item{Object: "embedding", Embedding: []float32{float32(len(text)), 0, 0, 1}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	var calls atomic.Int32
	server := newEmbeddingServer(t, &calls)

	provider, err := NewProvider(ai.NewConfig(ai.WithEmbeddingHost(server.URL)))
	require.NoError(t, err)
	defer provider.Close()

	embedder, err := provider.Embedder("test-model", ai.EmbedderOptions{})
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0, 1}, vectors[0])
	assert.Equal(t, []float32{3, 0, 0, 1}, vectors[1])

	single, err := embedder.EmbedText(context.Background(), "ab")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 0, 0, 1}, single)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedder_Dimensions(t *testing.T) {
	var calls atomic.Int32
	server := newEmbeddingServer(t, &calls)

	provider, err := NewProvider(ai.NewConfig(ai.WithEmbeddingHost(server.URL)))
	require.NoError(t, err)
	defer provider.Close()

	embedder, err := provider.Embedder("test-model", ai.EmbedderOptions{Dimensions: 2})
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"abcd"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, []float32{1, 0}, vectors[0])
}

func TestEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider, err := NewProvider(ai.NewConfig(ai.WithEmbeddingHost(server.URL)))
	require.NoError(t, err)
	defer provider.Close()

	embedder, err := provider.Embedder("test-model", ai.EmbedderOptions{})
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestProvider_ReusesEmbedders(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig())
	require.NoError(t, err)
	defer provider.Close()

	a, err := provider.Embedder("m", ai.EmbedderOptions{})
	require.NoError(t, err)
	b, err := provider.Embedder("m", ai.EmbedderOptions{})
	require.NoError(t, err)
	c, err := provider.Embedder("m", ai.EmbedderOptions{Dimensions: 8})
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	_, err = provider.Embedder("", ai.EmbedderOptions{})
	assert.Error(t, err)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{Provider: ai.ProviderOpenAI})
	assert.Error(t, err)
}
