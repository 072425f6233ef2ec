// Package index stores embedding vectors with per-segment metadata and
// serves similarity search over them. Two interchangeable backends
// implement one contract: a local flat index persisted to disk and a
// managed Qdrant collection. Callers depend only on VectorIndex;
// score scales are backend-specific (exp(-L2distance) locally, cosine
// similarity on Qdrant) and thresholds are tuned in configuration.
package index

import (
	"context"
	"errors"
	"fmt"

	"docqa/internal/chunker"
)

// ErrNotInitialized is returned when any operation runs before Initialize.
var ErrNotInitialized = errors.New("vector index not initialized")

// Error wraps a backend failure with the operation that caused it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// EntryMeta is the metadata side of one stored entry: the segment's full
// text plus its provenance. JSON tags define the on-disk layout of the
// local backend's side table and the Qdrant payload keys.
type EntryMeta struct {
	Content      string `json:"content"`
	Source       string `json:"source"`
	DocType      string `json:"type"`
	SegmentIndex int    `json:"chunk_id"`
	TokenCount   int    `json:"token_count"`
	Page         int    `json:"page_number,omitempty"`
}

// SearchResult is one scored hit. Score is always higher-is-more-similar;
// its range depends on the backend.
type SearchResult struct {
	ID      string
	Score   float32
	Content string
	Meta    EntryMeta
}

// Stats summarizes an index.
type Stats struct {
	Dimension    int            `json:"dimension"`
	TotalVectors int            `json:"total_vectors"`
	TotalEntries int            `json:"total_entries"`
	Sources      map[string]int `json:"sources"`
}

// VectorIndex is the unified store/search contract both backends honor.
// Initialize must be called before any other operation; everything else
// fails with ErrNotInitialized until then.
type VectorIndex interface {
	// Initialize loads persisted state if present, otherwise creates an
	// empty index of the configured dimension. Idempotent.
	Initialize(ctx context.Context) error

	// Store appends segment vectors with their metadata and returns the
	// assigned entry IDs, in input order. Every vector must match the
	// index dimension.
	Store(ctx context.Context, segments []chunker.Segment, vectors [][]float32) ([]string, error)

	// Search returns up to topK entries ordered by descending score.
	// A non-nil filter restricts results to entries whose metadata
	// matches every given key/value pair. An empty index returns an
	// empty result, never an error.
	Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]SearchResult, error)

	// DeleteBySource removes all entries whose source equals the
	// argument. See each backend for what "removes" means.
	DeleteBySource(ctx context.Context, source string) error

	// Stats reports the current index shape.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases backend resources. The index is unusable afterwards.
	Close() error
}

// metaForSegment maps a chunked segment to its stored metadata.
func metaForSegment(seg chunker.Segment) EntryMeta {
	return EntryMeta{
		Content:      seg.Text,
		Source:       seg.Meta.Source,
		DocType:      seg.Meta.DocType,
		SegmentIndex: seg.Meta.Index,
		TokenCount:   seg.Meta.Tokens.N,
		Page:         seg.Meta.Page,
	}
}

// matchesFilter reports whether the metadata matches every filter pair.
func matchesFilter(meta EntryMeta, filter map[string]string) bool {
	for key, want := range filter {
		var got string
		switch key {
		case "source":
			got = meta.Source
		case "type":
			got = meta.DocType
		case "content":
			got = meta.Content
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}
