package source

import (
	"context"
	"fmt"

	"reporag/internal/domain"
	"reporag/internal/port"
)

// Router sends each repository to the extractor for its kind.
type Router struct {
	Local  port.ContentExtractor
	GitHub port.ContentExtractor
}

func (r *Router) Extract(ctx context.Context, ref domain.RepoRef) ([]domain.RawFileRecord, error) {
	var ex port.ContentExtractor
	switch ref.Kind {
	case domain.RepoLocal:
		ex = r.Local
	case domain.RepoGitHub:
		ex = r.GitHub
	}
	if ex == nil {
		return nil, fmt.Errorf("no extractor configured for %s", ref)
	}
	return ex.Extract(ctx, ref)
}
