package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit wins", Config{Provider: "LOCAL", OpenAIAPIKey: "k"}, ProviderLocal},
		{"jina key", Config{JinaAPIKey: "j", OpenAIAPIKey: "o"}, ProviderJina},
		{"openai key", Config{OpenAIAPIKey: "o"}, ProviderOpenAI},
		{"nothing configured", Config{}, ProviderNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		p, err := New(Config{Provider: ProviderLocal, Dimension: 64})
		require.NoError(t, err)
		assert.Equal(t, 64, p.Dimension())
	})

	t.Run("openai uses explicit key first", func(t *testing.T) {
		p, err := New(Config{Provider: ProviderOpenAI, APIKey: "explicit"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, p.Name())
	})

	t.Run("openai without key", func(t *testing.T) {
		_, err := New(Config{Provider: ProviderOpenAI})
		assert.True(t, errors.Is(err, ErrNoProviderEnabled))
	})

	t.Run("none", func(t *testing.T) {
		p, err := New(Config{Provider: ProviderNone})
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(Config{Provider: "telepathy"})
		assert.True(t, errors.Is(err, ErrUnsupportedModel))
	})
}

func TestNewChoice(t *testing.T) {
	choice, err := NewChoice(Config{Provider: ProviderNone, Dimension: 12}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, KindDisabled, choice.Kind())
	assert.Equal(t, 12, choice.Dimension())

	choice, err = NewChoice(Config{Provider: ProviderLocal, CacheSize: 5}, newMapStore(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, KindProvider, choice.Kind())
	p, ok := choice.Provider()
	require.True(t, ok)
	_, isCached := p.(*Cached)
	assert.True(t, isCached)
}

func TestNewChoice_CachesNonDefaultModel(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	server := embeddingServer(t, 3, &calls)

	choice, err := NewChoice(Config{
		Provider: ProviderOpenAI,
		Model:    "nomic-embed-text",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, newMapStore(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, choice.Dimension())

	p, ok := choice.Provider()
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		vectors, err := p.Embed(ctx, []string{"same text"})
		require.NoError(t, err)
		require.Len(t, vectors, 1)
		assert.Len(t, vectors[0], 3)
	}
	assert.Equal(t, int32(1), calls.Load())
}
