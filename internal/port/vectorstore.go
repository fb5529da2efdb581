package port

import (
	"context"

	"reporag/internal/domain"
)

// VectorCollection stores embedded documents in named collections and
// answers nearest-neighbour queries by cosine similarity.
type VectorCollection interface {
	// Upsert writes or overwrites documents by ID. The first write fixes the
	// collection's dimension.
	Upsert(ctx context.Context, collection string, docs []domain.EmbeddedDocument) error

	// Query returns at most k documents ordered by non-increasing score.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievalResult, error)

	Count(ctx context.Context, collection string) (int, error)

	Collections(ctx context.Context) ([]domain.CollectionInfo, error)

	Close() error
}
