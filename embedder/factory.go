package embedder

import (
	"fmt"

	"github.com/mnemo-dev/mnemo/config"
)

// NewFromConfig creates an Embedder based on the provided configuration.
// All providers are wrapped with retry-on-transient-failure.
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	inner, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return WithRetry(inner, DefaultRetryConfig()), nil
}

func newProvider(cfg *config.Config) (Embedder, error) {
	switch cfg.Embedder.Provider {
	case "openai":
		opts := []OpenAIOption{
			WithOpenAIModel(cfg.Embedder.Model),
			WithOpenAIKey(cfg.Embedder.APIKey),
			WithOpenAIEndpoint(cfg.Embedder.Endpoint),
		}
		if cfg.Embedder.Dimensions != nil {
			opts = append(opts, WithOpenAIDimensions(*cfg.Embedder.Dimensions))
		}
		return NewOpenAIEmbedder(opts...)

	case "hash":
		return NewHashEmbedder(cfg.Embedder.GetDimensions()), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedder.Provider)
	}
}
