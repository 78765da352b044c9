package cache

import (
	"fmt"

	"github.com/poiesic/embedfill/ai"
	"github.com/poiesic/embedfill/core"
)

// EmbeddingKey returns the cache key for text embedded by model with opts.
func EmbeddingKey(prefix, model string, opts ai.EmbedderOptions, text string) string {
	return fmt.Sprintf("%s:%s:%d:%s:%016x", prefix, model, opts.Dimensions, opts.TaskType, uint64(core.IDFromContent(text)))
}
