package embedder

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Environment variables consulted by the config layer
const (
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, local, none, or "" to detect
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	CacheSize int

	// Keys used when Provider is "" or APIKey is empty
	JinaAPIKey   string
	OpenAIAPIKey string
}

// DetectProvider returns the provider New would build for cfg
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.JinaAPIKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderNone
}

// New creates the raw provider for cfg. It returns (nil, nil) for "none".
func New(cfg Config) (Provider, error) {
	switch provider := DetectProvider(cfg); provider {
	case ProviderJina:
		return NewJinaProvider(firstNonEmpty(cfg.APIKey, cfg.JinaAPIKey), cfg.Model, cfg.BaseURL)
	case ProviderOpenAI:
		return NewOpenAIProvider(firstNonEmpty(cfg.APIKey, cfg.OpenAIAPIKey), cfg.Model, cfg.BaseURL, cfg.Dimension)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension), nil
	case ProviderNone, "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewChoice builds the provider for cfg and wraps it with the LRU and the
// persistent store. store may be nil.
func NewChoice(cfg Config, store Store, logger zerolog.Logger) (Choice, error) {
	provider, err := New(cfg)
	if err != nil {
		return Choice{}, err
	}
	if provider == nil {
		return Disabled(cfg.Dimension), nil
	}
	return Use(NewCached(provider, NewCache(cfg.CacheSize), store, logger)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
