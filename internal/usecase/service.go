package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"reporag/internal/domain"
	"reporag/internal/logging"
	"reporag/internal/metrics"
	"reporag/internal/port"
)

// Service is the operator surface: ingest a repository, then ask questions
// about it.
type Service struct {
	ingest    *IngestUseCase
	retriever port.Retriever
	answerer  port.Synthesizer
	store     port.VectorCollection
	topK      int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewService(
	ingest *IngestUseCase,
	retriever port.Retriever,
	answerer port.Synthesizer,
	store port.VectorCollection,
	topK int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		ingest:    ingest,
		retriever: retriever,
		answerer:  answerer,
		store:     store,
		topK:      topK,
		metrics:   m,
		logger:    logging.OrNop(logger),
	}
}

// Ingest parses repoRef (GitHub URL or local path) and ingests it into the
// collection derived from the repository identity.
func (s *Service) Ingest(ctx context.Context, repoRef string) (*IngestResult, error) {
	ref, err := domain.ParseRepoRef(repoRef)
	if err != nil {
		return nil, err
	}
	return s.ingest.Ingest(ctx, ref)
}

// Query answers question from the configured number of retrieved documents.
func (s *Service) Query(ctx context.Context, collection, question string) (*domain.Answer, error) {
	return s.QueryTopK(ctx, collection, question, s.topK)
}

// QueryTopK is Query with an explicit retrieval depth.
func (s *Service) QueryTopK(ctx context.Context, collection, question string, k int) (answer *domain.Answer, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveStage("query", start)
		s.metrics.QueryDone(statusOf(err))
	}()

	if strings.TrimSpace(collection) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "query", errors.New("collection name is required"))
	}

	retrieved, err := s.retriever.Retrieve(ctx, collection, question, k)
	if err != nil {
		return nil, err
	}

	answer, err = s.answerer.Answer(ctx, question, retrieved)
	if err != nil {
		return nil, err
	}

	s.logger.Info("answered query",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("results", len(retrieved)),
		zap.Duration("duration", time.Since(start)))
	return answer, nil
}

// Collections lists the stored collections.
func (s *Service) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	return s.store.Collections(ctx)
}

func statusOf(err error) string {
	switch domain.KindOf(err) {
	case nil:
		if err != nil {
			return "error"
		}
		return "ok"
	case domain.ErrInvalidInput:
		return "invalid_input"
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrEmbedding:
		return "embedding_error"
	case domain.ErrStorage:
		return "storage_error"
	case domain.ErrGeneration:
		return "generation_error"
	default:
		return "error"
	}
}
