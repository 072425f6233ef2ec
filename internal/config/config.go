package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DOCQA_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: DOCQA_CHUNK_SIZE -> chunk_size,
	// DOCQA_QDRANT__URL -> qdrant.url, etc.
	if err := k.Load(env.Provider("DOCQA_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "DOCQA_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderGoogle:    true,
	ProviderOllama:    true,
}

// validBackends is the set of recognized vector backend values.
var validBackends = map[BackendType]bool{
	BackendLocal:  true,
	BackendQdrant: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, anthropic, google, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}

	if !validBackends[c.VectorBackend] {
		return fmt.Errorf("invalid vector_backend %q: must be local or qdrant", c.VectorBackend)
	}
	if c.VectorBackend == BackendLocal {
		if c.IndexPath == "" || c.MetadataPath == "" {
			return fmt.Errorf("index_path and metadata_path are required for the local backend")
		}
	}
	if c.VectorBackend == BackendQdrant {
		if c.Qdrant.URL == "" || c.Qdrant.Collection == "" {
			return fmt.Errorf("qdrant.url and qdrant.collection are required for the qdrant backend")
		}
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}

	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0, 1]")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.RequestsPerMin < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}

	return nil
}

// EmbeddingDimension returns the vector dimension for the configured
// embedding model, or an error if the model is unknown.
func (c *Config) EmbeddingDimension() (int, error) {
	if d, ok := EmbeddingDimensions[c.EmbeddingModel]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown embedding model %q: no dimension registered", c.EmbeddingModel)
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
