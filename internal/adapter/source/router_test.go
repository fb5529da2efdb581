package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporag/internal/domain"
)

type fixedExtractor struct {
	records []domain.RawFileRecord
	calls   int
}

func (f *fixedExtractor) Extract(ctx context.Context, ref domain.RepoRef) ([]domain.RawFileRecord, error) {
	f.calls++
	return f.records, nil
}

func TestRouterDispatchesByKind(t *testing.T) {
	local := &fixedExtractor{records: []domain.RawFileRecord{{Path: "local.txt"}}}
	remote := &fixedExtractor{records: []domain.RawFileRecord{{Path: "remote.txt"}}}
	r := &Router{Local: local, GitHub: remote}

	got, err := r.Extract(context.Background(), domain.RepoRef{Kind: domain.RepoGitHub, Owner: "o", Name: "r"})
	require.NoError(t, err)
	assert.Equal(t, "remote.txt", got[0].Path)

	got, err = r.Extract(context.Background(), domain.RepoRef{Kind: domain.RepoLocal, Path: "/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "local.txt", got[0].Path)

	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, remote.calls)
}

func TestRouterMissingExtractor(t *testing.T) {
	r := &Router{}
	_, err := r.Extract(context.Background(), domain.RepoRef{Kind: domain.RepoGitHub, Owner: "o", Name: "r"})
	assert.ErrorContains(t, err, "github.com/o/r")
}
