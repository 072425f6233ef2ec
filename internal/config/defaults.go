package config

// EmbeddingDimensions maps known embedding models to their output
// dimension counts. Models not listed here need an explicit dimension
// from the caller.
var EmbeddingDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-004":     768,
	"nomic-embed-text":       768,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",

		VectorBackend: BackendLocal,
		IndexPath:     "data/index.gob",
		MetadataPath:  "data/metadata.json",
		Qdrant: QdrantConfig{
			URL:        "http://localhost:6333",
			Collection: "docqa-documents",
		},

		ChunkSize:    1000,
		ChunkOverlap: 200,

		TopK:                10,
		SimilarityThreshold: 0.7,

		MaxTokens:       4096,
		FetchTimeout:    30,
		GenerateTimeout: 60,
		Workers:         4,

		Port: 8000,
	}
}
