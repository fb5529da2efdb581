package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"reporag/internal/domain"
)

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, ref domain.RepoRef) ([]domain.RawFileRecord, error) {
	args := m.Called(ctx, ref)
	records, _ := args.Get(0).([]domain.RawFileRecord)
	return records, args.Error(1)
}

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// lastPrompt returns the prompt of the most recent Generate call.
func (m *mockLLM) lastPrompt() string {
	calls := m.Calls
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1].Arguments.String(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Upsert(ctx context.Context, collection string, docs []domain.EmbeddedDocument) error {
	return m.Called(ctx, collection, docs).Error(0)
}

func (m *mockStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, collection, vector, k)
	results, _ := args.Get(0).([]domain.RetrievalResult)
	return results, args.Error(1)
}

func (m *mockStore) Count(ctx context.Context, collection string) (int, error) {
	args := m.Called(ctx, collection)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	args := m.Called(ctx)
	infos, _ := args.Get(0).([]domain.CollectionInfo)
	return infos, args.Error(1)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
