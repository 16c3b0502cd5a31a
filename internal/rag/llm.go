package rag

import "context"

// EmbeddingsClient produces the query vector used for similarity search.
type EmbeddingsClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
