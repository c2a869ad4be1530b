// Package embedding turns text into vectors for the index and for questions.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces embedding vectors.
// Vectors returned for the same model must have the same dimensionality.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the model producing the vectors.
	ModelName() string
}

// first returns the single vector of a one-element batch.
func first(vectors [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errUnexpectedCount(1, len(vectors))
	}
	return vectors[0], nil
}

func errUnexpectedCount(want, got int) error {
	return fmt.Errorf("expected %d embeddings, got %d", want, got)
}
