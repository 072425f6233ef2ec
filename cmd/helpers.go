package cmd

import (
	"fmt"
	"time"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/embeddings"
	"docqa/internal/extract"
	"docqa/internal/index"
	"docqa/internal/llm"
	"docqa/internal/pipeline"
)

// loadConfig loads and validates the config file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildIndex creates the vector index named by cfg.VectorBackend. The
// returned index is not yet initialized; the pipeline does that lazily.
func buildIndex(cfg *config.Config, dimension int) (index.VectorIndex, error) {
	switch cfg.VectorBackend {
	case config.BackendLocal:
		return index.NewFlatIndex(index.FlatOptions{
			IndexPath:    cfg.IndexPath,
			MetadataPath: cfg.MetadataPath,
			Dimension:    dimension,
			Workers:      cfg.Workers,
		}), nil
	case config.BackendQdrant:
		return index.NewQdrantIndex(index.QdrantOptions{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Dimension:  dimension,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// buildPipeline assembles the full extraction-to-answer pipeline from
// config. It returns the index alongside the pipeline so commands that
// need direct index access (stats, rebuild, server) can share it.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, index.VectorIndex, error) {
	embedder, err := embeddings.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	idx, err := buildIndex(cfg, embedder.Dimensions())
	if err != nil {
		return nil, nil, err
	}

	provider, err := llm.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if cfg.RequestsPerMin > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RequestsPerMin)
	}

	pipe := pipeline.New(
		extract.NewHTTPExtractor(time.Duration(cfg.FetchTimeout)*time.Second),
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		idx,
		answer.NewGenerator(provider, cfg.Model),
		pipeline.Options{
			TopK:                cfg.TopK,
			SimilarityThreshold: float32(cfg.SimilarityThreshold),
			MaxTokens:           cfg.MaxTokens,
			FetchTimeout:        time.Duration(cfg.FetchTimeout) * time.Second,
			GenerateTimeout:     time.Duration(cfg.GenerateTimeout) * time.Second,
		},
	)
	return pipe, idx, nil
}
