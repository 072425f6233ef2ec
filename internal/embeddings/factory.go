package embeddings

import (
	"fmt"
	"os"

	"docqa/internal/config"
)

// New creates an embedder for the configured provider and model, reading
// the conventional API key environment variable where one is needed.
func New(cfg *config.Config) (Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI, config.ProviderAnthropic:
		// Anthropic has no embedding API; OpenAI embeddings are the
		// conventional pairing.
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(cfg.EmbeddingModel)), nil

	case config.ProviderGoogle:
		apiKey := os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is not set")
		}
		return NewGoogleEmbedder(apiKey, GoogleModel(cfg.EmbeddingModel)), nil

	case config.ProviderOllama:
		dims, err := cfg.EmbeddingDimension()
		if err != nil {
			return nil, err
		}
		return NewOllamaEmbedder(cfg.EmbeddingModel, dims, os.Getenv("OLLAMA_HOST")), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
