package port

import (
	"context"

	"reporag/internal/domain"
)

// ContentExtractor lists the textual files of a repository.
type ContentExtractor interface {
	Extract(ctx context.Context, ref domain.RepoRef) ([]domain.RawFileRecord, error)
}
