package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/embedfill/ai"
	"google.golang.org/genai"
)

// Embedder wraps a genai.Client to implement ai.Embedder.
type Embedder struct {
	client  *genai.Client
	model   string
	opts    ai.EmbedderOptions
	timeout time.Duration
	logger  *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(client *genai.Client, model string, opts ai.EmbedderOptions, timeout time.Duration) *Embedder {
	return &Embedder{
		client:  client,
		model:   model,
		opts:    opts,
		timeout: timeout,
		logger:  slog.Default().With("component", "gemini-embedder", "model", model),
	}
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts with one EmbedContent call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{
				{Text: text},
			},
		}
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.config())
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding vector at index %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *Embedder) config() *genai.EmbedContentConfig {
	cfg := &genai.EmbedContentConfig{TaskType: e.opts.TaskType}
	if e.opts.Dimensions > 0 {
		dims := int32(e.opts.Dimensions)
		cfg.OutputDimensionality = &dims
	}
	return cfg
}
