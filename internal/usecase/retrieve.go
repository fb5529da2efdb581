package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"reporag/internal/domain"
	"reporag/internal/logging"
	"reporag/internal/port"
)

// RetrieveUseCase embeds a query and finds the nearest documents.
type RetrieveUseCase struct {
	embedder port.EmbeddingProvider
	store    port.VectorCollection
	minScore float64 // Filter results below this score (0 = disabled)
	logger   *zap.Logger
}

func NewRetrieveUseCase(
	embedder port.EmbeddingProvider,
	store port.VectorCollection,
	minScore float64,
	logger *zap.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		store:    store,
		minScore: minScore,
		logger:   logging.OrNop(logger),
	}
}

// Retrieve returns at most k documents from collection, best first.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, collection, query string, k int) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewError(domain.ErrEmbedding, "embed query", errors.New("query is empty")).WithCollection(collection)
	}

	vector, err := u.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewError(domain.ErrEmbedding, "embed query", err).WithCollection(collection)
	}

	results, err := u.store.Query(ctx, collection, vector, k)
	if err != nil {
		return nil, err
	}

	if u.minScore > 0 {
		results = u.filterByThreshold(results)
	}

	u.logger.Debug("retrieved documents",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("results", len(results)))
	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []domain.RetrievalResult) []domain.RetrievalResult {
	filtered := make([]domain.RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
