package llm

import (
	"fmt"
	"os"

	"docqa/internal/config"
)

// New builds the completion provider selected by cfg.Provider, reading
// the conventional API key environment variable where one is required.
// Ollama needs no key; its host comes from OLLAMA_HOST when set.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGoogle:
		envVar := config.APIKeyEnvVar(cfg.Provider)
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", envVar)
		}
		switch cfg.Provider {
		case config.ProviderOpenAI:
			return NewOpenAIProvider(apiKey, cfg.Model), nil
		case config.ProviderAnthropic:
			return NewAnthropicProvider(apiKey, cfg.Model), nil
		default:
			return NewGoogleProvider(apiKey, cfg.Model), nil
		}

	case config.ProviderOllama:
		return NewOllamaProvider(os.Getenv("OLLAMA_HOST"), cfg.Model), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
