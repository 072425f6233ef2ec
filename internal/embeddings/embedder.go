// Package embeddings maps text to fixed-dimension vectors. Batched calls
// are order-preserving and equivalent to embedding each text alone; a
// model failure surfaces as *Error and is never retried here.
package embeddings

import (
	"context"
	"fmt"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts, one vector per
	// input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Error reports an embedding model failure.
type Error struct {
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding with %s: %v", e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
