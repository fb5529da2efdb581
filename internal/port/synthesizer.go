package port

import (
	"context"

	"reporag/internal/domain"
)

// Synthesizer turns retrieved documents into an answer for the query.
type Synthesizer interface {
	Answer(ctx context.Context, query string, retrieved []domain.RetrievalResult) (*domain.Answer, error)
}
