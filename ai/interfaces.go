package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderOptions tunes the embeddings an Embedder produces.
// Zero values fall back to the provider's Config.
type EmbedderOptions struct {
	// Dimensions truncates or requests vectors of this size. Zero keeps the native size.
	Dimensions int

	// TaskType is a model-specific task hint such as "RETRIEVAL_DOCUMENT".
	TaskType string
}

// Provider creates embedders for named models and manages their shared resources.
type Provider interface {
	// Embedder returns an embedder for the given model.
	// The returned Embedder is safe for concurrent use.
	Embedder(model string, opts EmbedderOptions) (Embedder, error)

	// Close releases resources held by the provider and its embedders.
	// After Close is called, the provider and its embedders should not be used.
	Close() error
}
