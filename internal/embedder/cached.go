package embedder

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// Store persists embeddings across runs. A miss or an unreadable entry
// reports ok=false.
type Store interface {
	GetCachedEmbedding(ctx context.Context, key types.CacheKey) (vector []float32, ok bool, err error)
	PutCachedEmbedding(ctx context.Context, key types.CacheKey, vector []float32) error
}

// Cached memoizes a provider's embeddings, first in an in-process LRU and
// then in a persistent Store. Both layers are optional.
type Cached struct {
	provider Provider
	lru      *Cache
	store    Store
	logger   zerolog.Logger
}

// NewCached wraps provider. lru and store may be nil.
func NewCached(provider Provider, lru *Cache, store Store, logger zerolog.Logger) *Cached {
	return &Cached{
		provider: provider,
		lru:      lru,
		store:    store,
		logger:   logger.With().Str("component", "embedder").Logger(),
	}
}

// Embed returns cached vectors where available and embeds the remaining
// distinct texts in a single provider call.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	keys := make([]types.CacheKey, len(texts))
	pending := make(map[types.CacheKey][]int)
	var missTexts []string
	var missKeys []types.CacheKey

	for i, text := range texts {
		keys[i] = c.key(text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			vectors[i] = vec
			continue
		}
		if _, queued := pending[keys[i]]; !queued {
			missTexts = append(missTexts, text)
			missKeys = append(missKeys, keys[i])
		}
		pending[keys[i]] = append(pending[keys[i]], i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	embedded, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkBatch(missTexts, embedded, 0); err != nil {
		return nil, err
	}

	for i, key := range missKeys {
		c.remember(ctx, key, embedded[i])
		for _, idx := range pending[key] {
			vectors[idx] = append([]float32(nil), embedded[i]...)
		}
	}

	return vectors, nil
}

func (c *Cached) key(text string) types.CacheKey {
	return types.CacheKey{
		Provider:    c.provider.Name(),
		Model:       c.provider.Model(),
		ProviderKey: c.provider.CacheKey(),
		Hash:        types.FingerprintString(text),
	}
}

func (c *Cached) lookup(ctx context.Context, key types.CacheKey) ([]float32, bool) {
	dim := c.provider.Dimension()

	if c.lru != nil {
		if vec, ok := c.lru.Get(key); ok && (dim == 0 || len(vec) == dim) {
			return vec, true
		}
	}

	if c.store == nil {
		return nil, false
	}
	vec, ok, err := c.store.GetCachedEmbedding(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("hash", key.Hash).Msg("embedding cache read failed")
		return nil, false
	}
	if !ok || (dim > 0 && len(vec) != dim) {
		return nil, false
	}
	if c.lru != nil {
		c.lru.Set(key, vec)
	}
	return vec, true
}

func (c *Cached) remember(ctx context.Context, key types.CacheKey, vec []float32) {
	if c.lru != nil {
		c.lru.Set(key, vec)
	}
	if c.store != nil {
		if err := c.store.PutCachedEmbedding(ctx, key, vec); err != nil {
			c.logger.Warn().Err(err).Str("hash", key.Hash).Msg("embedding cache write failed")
		}
	}
}

func (c *Cached) Name() string {
	return c.provider.Name()
}

func (c *Cached) Model() string {
	return c.provider.Model()
}

func (c *Cached) Dimension() int {
	return c.provider.Dimension()
}

func (c *Cached) CacheKey() string {
	return c.provider.CacheKey()
}

func (c *Cached) Close() error {
	return c.provider.Close()
}
