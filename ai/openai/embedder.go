package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/embedfill/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
	timeout    time.Duration
	logger     *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config, model string, opts ai.EmbedderOptions) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	opts = config.Resolve(opts)

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}

	// Wrap in langchaingo embedder
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-embedder", "model", model)
	if opts.TaskType != "" {
		logger.Debug("task type is not supported by OpenAI-compatible APIs, ignoring", "task_type", opts.TaskType)
	}

	return &Embedder{
		embedder:   embedder,
		model:      model,
		dimensions: opts.Dimensions,
		timeout:    config.RequestTimeout,
		logger:     logger,
	}, nil
}

// NewEmbedder creates a new embedder for model using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, model string, opts ai.EmbedderOptions) (ai.Embedder, error) {
	return newEmbedder(config, model, opts)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
// Vectors longer than the requested dimensionality are truncated and renormalized.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	if e.dimensions > 0 {
		for i, v := range vectors {
			vectors[i] = ai.TruncateVector(v, e.dimensions)
		}
	}
	return vectors, nil
}
