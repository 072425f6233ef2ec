package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGoogle    ProviderType = "google"
	ProviderOllama    ProviderType = "ollama"
)

// BackendType identifies a vector index backend.
type BackendType string

const (
	BackendLocal  BackendType = "local"
	BackendQdrant BackendType = "qdrant"
)

// Config is the top-level docqa configuration, corresponding to .docqa.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`

	VectorBackend BackendType  `yaml:"vector_backend" koanf:"vector_backend"`
	IndexPath     string       `yaml:"index_path" koanf:"index_path"`
	MetadataPath  string       `yaml:"metadata_path" koanf:"metadata_path"`
	Qdrant        QdrantConfig `yaml:"qdrant" koanf:"qdrant"`

	ChunkSize    int `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" koanf:"chunk_overlap"`

	TopK int `yaml:"top_k" koanf:"top_k"`
	// SimilarityThreshold is interpreted on the active backend's score
	// scale: exp(-distance) for the local index, cosine similarity for
	// Qdrant. Tune it together with vector_backend.
	SimilarityThreshold float64 `yaml:"similarity_threshold" koanf:"similarity_threshold"`

	MaxTokens       int `yaml:"max_tokens" koanf:"max_tokens"`
	FetchTimeout    int `yaml:"fetch_timeout_seconds" koanf:"fetch_timeout_seconds"`
	GenerateTimeout int `yaml:"generate_timeout_seconds" koanf:"generate_timeout_seconds"`
	Workers         int `yaml:"workers" koanf:"workers"`
	RequestsPerMin  int `yaml:"requests_per_minute" koanf:"requests_per_minute"`

	Port        int    `yaml:"port" koanf:"port"`
	BearerToken string `yaml:"api_bearer_token" koanf:"api_bearer_token"`
}

// QdrantConfig holds connection settings for the managed Qdrant backend.
type QdrantConfig struct {
	URL        string `yaml:"url" koanf:"url"`
	APIKey     string `yaml:"api_key" koanf:"api_key"`
	Collection string `yaml:"collection" koanf:"collection"`
}
