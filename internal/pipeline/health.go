package pipeline

import (
	"context"

	"docqa/internal/index"
)

// ComponentHealth is the status of one subsystem.
type ComponentHealth struct {
	Status string       `json:"status"` // "healthy" or "unhealthy"
	Error  string       `json:"error,omitempty"`
	Stats  *index.Stats `json:"stats,omitempty"`
}

// Health is the aggregate health report. Status is "healthy" only when
// every component is.
type Health struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthCheck probes each subsystem independently: index stats, a single
// embedding call and a trivial generation call. It mutates no persisted
// state and never returns an error; failures are reported per component.
func (p *Pipeline) HealthCheck(ctx context.Context) Health {
	health := Health{
		Status:     "healthy",
		Components: make(map[string]ComponentHealth),
	}
	mark := func(name string, err error, stats *index.Stats) {
		if err != nil {
			health.Components[name] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
			health.Status = "unhealthy"
			return
		}
		health.Components[name] = ComponentHealth{Status: "healthy", Stats: stats}
	}

	if err := p.Initialize(ctx); err != nil {
		mark("vector_store", err, nil)
		mark("embedding_model", err, nil)
		mark("answer_model", err, nil)
		return health
	}

	stats, err := p.idx.Stats(ctx)
	mark("vector_store", err, stats)

	_, err = p.embedder.Embed(ctx, []string{"health check"})
	mark("embedding_model", err, nil)

	probe := []index.SearchResult{{
		ID:      "health",
		Score:   0.9,
		Content: "test content",
		Meta:    index.EntryMeta{Content: "test content", Source: "health-check"},
	}}
	_, err = p.generator.Generate(ctx, "test query", probe, 64)
	mark("answer_model", err, nil)

	return health
}
