package port

import (
	"context"

	"reporag/internal/domain"
)

// Retriever finds the documents of a collection most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, k int) ([]domain.RetrievalResult, error)
}
