package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/embedfill"
	"github.com/poiesic/embedfill/ai"
	"github.com/poiesic/embedfill/ai/cache"
	"github.com/poiesic/embedfill/embed"
	"github.com/urfave/cli/v2"
)

// Store kinds accepted by --store.
const (
	storeBadger   = "badger"
	storePostgres = "postgres"
)

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "store",
			Usage: "Table store (badger, postgres)",
			Value: storeBadger,
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "embedfill.db",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "PostgreSQL connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
	}
}

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Embedding provider (openai, gemini, mock)",
			Value: ai.ProviderOpenAI,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for the embedding service",
			EnvVars: []string{"OPENAI_API_KEY", "GEMINI_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "project",
			Usage: "Google Cloud project; routes Gemini requests through Vertex AI",
		},
		&cli.StringFlag{
			Name:  "location",
			Usage: "Vertex AI location",
			Value: "us-central1",
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Default output dimensionality (0 keeps the model's size)",
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "Timeout for a single embedding request",
			Value: 2 * time.Minute,
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Cache embeddings in this Redis server",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.DurationFlag{
			Name:  "cache-ttl",
			Usage: "Lifetime of cached embeddings",
			Value: cache.DefaultTTL,
		},
		&cli.IntFlag{
			Name:  "max-request-size",
			Usage: "Maximum number of texts per embedding request",
			Value: embed.DefaultMaxRequestSize,
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Embedding requests in flight (0 uses half the CPUs)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts per embedding request",
			Value: embed.DefaultMaxAttempts,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: embed.DefaultRetryDelay,
		},
	}
}

// aiConfig builds the provider configuration from the provider flags.
func aiConfig(c *cli.Context) *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithProvider(c.String("provider")),
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithDimensions(c.Int("dimensions")),
		ai.WithRequestTimeout(c.Duration("request-timeout")),
	}
	if project := c.String("project"); project != "" {
		opts = append(opts, ai.WithVertex(project, c.String("location")))
	}
	return ai.NewConfig(opts...)
}

// providerOptions turns the provider flags into database options.
func providerOptions(c *cli.Context) ([]embedfill.DatabaseOption, error) {
	if c.Int("max-retries") <= 0 {
		return nil, fmt.Errorf("max-retries must be greater than 0")
	}
	if c.Int("max-request-size") <= 0 {
		return nil, fmt.Errorf("max-request-size must be greater than 0")
	}

	cfg := aiConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	backendOpts := []embed.BackendOption{
		embed.WithMaxRequestSize(c.Int("max-request-size")),
		embed.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	}
	if n := c.Int("concurrency"); n > 0 {
		backendOpts = append(backendOpts, embed.WithConcurrency(n))
	}

	opts := []embedfill.DatabaseOption{
		embedfill.WithAIConfig(cfg),
		embedfill.WithBackendOptions(backendOpts...),
	}
	if url := c.String("redis-url"); url != "" {
		opts = append(opts, embedfill.WithEmbeddingCache(url, cache.WithTTL(c.Duration("cache-ttl"))))
	}
	return opts, nil
}

// openDatabase opens the store selected by the store flags.
// Commands that never embed get the mock provider so no credentials are needed.
func openDatabase(c *cli.Context, opts ...embedfill.DatabaseOption) (*embedfill.Database, error) {
	if len(opts) == 0 {
		opts = []embedfill.DatabaseOption{
			embedfill.WithAIConfig(ai.NewConfig(ai.WithProvider(ai.ProviderMock))),
		}
	}
	switch kind := strings.ToLower(c.String("store")); kind {
	case storeBadger:
		path := c.String("db")
		if path == "" {
			return nil, fmt.Errorf("database path is required")
		}
		db, err := embedfill.NewDatabase(c.Context, path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	case storePostgres:
		url := c.String("database-url")
		if url == "" {
			return nil, fmt.Errorf("database-url is required for the postgres store")
		}
		db, err := embedfill.NewPostgresDatabase(c.Context, url, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store %q: must be one of %s, %s", kind, storeBadger, storePostgres)
	}
}
