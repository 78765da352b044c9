package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/embedfill/ai"
	"google.golang.org/genai"
)

// Provider implements ai.Provider on top of a genai.Client.
// One client is shared by every embedder the provider hands out.
type Provider struct {
	client *genai.Client
	config *ai.Config
	logger *slog.Logger
}

// ProviderOption customizes NewProvider.
type ProviderOption func(*genai.ClientConfig)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = client
	}
}

// NewProvider creates a Gemini provider. Vertex AI is used when the config
// names a project, otherwise the Gemini API is called with the API key.
//
// Returns ai.Provider interface to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config, opts ...ProviderOption) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.Project != "" {
		clientConfig = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  config.Project,
			Location: config.Location,
		}
	}
	for _, opt := range opts {
		opt(clientConfig)
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Provider{
		client: client,
		config: config,
		logger: slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns an embedder for model.
func (p *Provider) Embedder(model string, opts ai.EmbedderOptions) (ai.Embedder, error) {
	if model == "" {
		return nil, fmt.Errorf("gemini: model is required")
	}
	return newEmbedder(p.client, model, p.config.Resolve(opts), p.config.RequestTimeout), nil
}

// Close releases resources held by the provider.
// genai clients hold no resources that need explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return nil
}
