package embedder

import (
	"context"
	"fmt"
)

// Kind enumerates the embedding configurations the engines handle
type Kind int

const (
	// KindDisabled means no provider; the vector leg is never used
	KindDisabled Kind = iota
	// KindProvider means a configured provider is available
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindDisabled:
		return "disabled"
	case KindProvider:
		return "provider"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Choice is either Disabled or a configured Provider
type Choice struct {
	kind      Kind
	provider  Provider
	dimension int
}

// Disabled returns the no-provider choice. dimension sizes the zero vectors
// stored for chunks and may be 0.
func Disabled(dimension int) Choice {
	return Choice{kind: KindDisabled, dimension: dimension}
}

// Use wraps a provider. A nil provider yields Disabled.
func Use(p Provider) Choice {
	if p == nil {
		return Disabled(0)
	}
	return Choice{kind: KindProvider, provider: p, dimension: p.Dimension()}
}

// Kind reports which variant this is
func (c Choice) Kind() Kind {
	return c.kind
}

// Provider returns the provider for KindProvider
func (c Choice) Provider() (Provider, bool) {
	return c.provider, c.kind == KindProvider
}

// Dimension returns the vector dimension stored for chunks
func (c Choice) Dimension() int {
	return c.dimension
}

// Name returns the provider name, or "none"
func (c Choice) Name() string {
	if c.kind == KindProvider {
		return c.provider.Name()
	}
	return "none"
}

// Model returns the model name, or ""
func (c Choice) Model() string {
	if c.kind == KindProvider {
		return c.provider.Model()
	}
	return ""
}

// Embed embeds texts with the provider. Disabled returns ErrNoProviderEnabled.
func (c Choice) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.kind != KindProvider {
		return nil, ErrNoProviderEnabled
	}
	return c.provider.Embed(ctx, texts)
}

// ZeroVectors returns n all-zero vectors of the configured dimension
func (c Choice) ZeroVectors(n int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, c.dimension)
	}
	return vectors
}

// Close closes the provider, if any
func (c Choice) Close() error {
	if c.kind == KindProvider {
		return c.provider.Close()
	}
	return nil
}
