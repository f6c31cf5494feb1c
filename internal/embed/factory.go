package embed

import (
	"context"
	"fmt"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider  string // openai, ollama, or static
	Model     string
	APIKey    string // openai only
	Host      string // ollama only
	CacheSize int    // 0 selects DefaultCacheSize
}

// New constructs the configured embedder, wrapped with the LRU cache.
// Unknown providers and missing credentials fail here, before any document
// is processed.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch cfg.Provider {
	case ProviderOpenAI, "":
		inner, err = NewOpenAIEmbedder(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{Host: cfg.Host, Model: cfg.Model})
	case ProviderStatic:
		inner = NewStaticEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
