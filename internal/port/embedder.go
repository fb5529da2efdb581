package port

import "context"

// EmbeddingProvider maps text to a fixed-dimension vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
