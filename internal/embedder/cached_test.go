package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// countingProvider records every text it is asked to embed
type countingProvider struct {
	mu     sync.Mutex
	calls  int
	texts  []string
	dim    int
	failOn string
}

func (p *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.texts = append(p.texts, texts...)

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if text == p.failOn {
			return nil, ErrProviderFailed
		}
		vec := make([]float32, p.dim)
		vec[0] = float32(len(text))
		vectors[i] = vec
	}
	return vectors, nil
}

func (p *countingProvider) Name() string     { return "counting" }
func (p *countingProvider) Model() string    { return "count-v1" }
func (p *countingProvider) Dimension() int   { return p.dim }
func (p *countingProvider) CacheKey() string { return "test" }
func (p *countingProvider) Close() error     { return nil }

// mapStore is an in-memory Store
type mapStore struct {
	mu      sync.Mutex
	entries map[types.CacheKey][]float32
	puts    int
	getErr  error
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[types.CacheKey][]float32)}
}

func (s *mapStore) GetCachedEmbedding(ctx context.Context, key types.CacheKey) ([]float32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	vec, ok := s.entries[key]
	return vec, ok, nil
}

func (s *mapStore) PutCachedEmbedding(ctx context.Context, key types.CacheKey, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.entries[key] = vector
	return nil
}

func TestCached_EmbedsMissesOnce(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{dim: 3}
	store := newMapStore()
	cached := NewCached(provider, NewCache(100), store, zerolog.Nop())

	first, err := cached.Embed(ctx, []string{"alpha", "beta", "alpha"})
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, first[0], first[2])
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, []string{"alpha", "beta"}, provider.texts, "duplicates are embedded once")
	assert.Equal(t, 2, store.puts)

	second, err := cached.Embed(ctx, []string{"beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, provider.texts)
}

func TestCached_PersistentStoreSurvivesNewLRU(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	_, err := NewCached(&countingProvider{dim: 2}, NewCache(10), store, zerolog.Nop()).Embed(ctx, []string{"note"})
	require.NoError(t, err)

	provider := &countingProvider{dim: 2}
	vectors, err := NewCached(provider, NewCache(10), store, zerolog.Nop()).Embed(ctx, []string{"note"})
	require.NoError(t, err)

	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, float32(4), vectors[0][0])
}

func TestCached_MisSizedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{dim: 3}
	store := newMapStore()
	cached := NewCached(provider, nil, store, zerolog.Nop())

	key := cached.key("note")
	store.entries[key] = []float32{1}

	vectors, err := cached.Embed(ctx, []string{"note"})
	require.NoError(t, err)
	assert.Len(t, vectors[0], 3)
	assert.Equal(t, 1, provider.calls)
}

func TestCached_StoreErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	provider := &countingProvider{dim: 2}
	store := newMapStore()
	store.getErr = errors.New("disk on fire")

	vectors, err := NewCached(provider, nil, store, zerolog.Nop()).Embed(ctx, []string{"note"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 1, provider.calls)
}

func TestCached_ProviderFailurePropagates(t *testing.T) {
	provider := &countingProvider{dim: 2, failOn: "bad"}
	cached := NewCached(provider, NewCache(10), nil, zerolog.Nop())

	_, err := cached.Embed(context.Background(), []string{"good", "bad"})
	assert.True(t, errors.Is(err, ErrProviderFailed))
}

func TestCached_Metadata(t *testing.T) {
	cached := NewCached(&countingProvider{dim: 5}, nil, nil, zerolog.Nop())

	assert.Equal(t, "counting", cached.Name())
	assert.Equal(t, "count-v1", cached.Model())
	assert.Equal(t, 5, cached.Dimension())
	assert.Equal(t, "test", cached.CacheKey())
	assert.NoError(t, cached.Close())
}
