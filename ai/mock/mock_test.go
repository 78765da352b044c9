package mock

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/embedfill/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder()
	ctx := context.Background()

	a, err := e.EmbedText(ctx, "hello")
	require.NoError(t, err)
	b, err := e.EmbedText(ctx, "hello")
	require.NoError(t, err)
	c, err := e.EmbedText(ctx, "world")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDimensions)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, e.CallCount())
	assert.Equal(t, []string{"hello", "hello", "world"}, e.Texts())
}

func TestMockEmbedder_ConcurrentCalls(t *testing.T) {
	e := NewMockEmbedder()
	e.Dimensions = 4

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.EmbedTexts(context.Background(), []string{"a", "b"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, e.CallCount())
	assert.Len(t, e.Texts(), 40)

	e.Reset()
	assert.Zero(t, e.CallCount())
	assert.Empty(t, e.Texts())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	embedder, err := p.Embedder("m1", ai.EmbedderOptions{Dimensions: 8})
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"x"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], 8)

	mp := p.(*MockProvider)
	assert.Same(t, mp.GetMockEmbedder(), embedder)
	assert.Equal(t, []string{"m1"}, mp.Models())

	require.NoError(t, p.Close())
	assert.True(t, mp.Closed())
}
