package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder is the capability the index core consumes: an ordered sequence
// of texts in, an ordered sequence of vectors of the same length out.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is a concrete embedding backend with identity metadata
type Provider interface {
	Embedder

	// Name returns the provider name
	Name() string

	// Model returns the model name
	Model() string

	// Dimension returns the embedding dimension for this model, or 0 when
	// it is not known before the first response
	Dimension() int

	// CacheKey distinguishes endpoints serving the same model name
	CacheKey() string

	// Close releases any resources held by the provider
	Close() error
}

// Cache provides in-memory LRU caching of vectors by cache key
type Cache struct {
	cache *lru.Cache[types.CacheKey, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[types.CacheKey, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[types.CacheKey, []float32](10000)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a copy of a cached vector
func (c *Cache) Get(key types.CacheKey) ([]float32, bool) {
	vec, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), vec...), true
}

// Set stores a copy of a vector with automatic LRU eviction
func (c *Cache) Set(key types.CacheKey, vec []float32) {
	c.cache.Add(key, append([]float32(nil), vec...))
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ValidateTexts rejects an empty batch or blank entries
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrEmptyText, i)
		}
	}

	return nil
}

// checkBatch verifies a provider response lines up with its request
func checkBatch(texts []string, vectors [][]float32, dimension int) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: requested %d embeddings, got %d", ErrProviderFailed, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if dimension > 0 && len(v) != dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dimension)
		}
	}
	return nil
}
