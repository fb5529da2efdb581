package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reporag/internal/adapter/memstore"
	"reporag/internal/domain"
	"reporag/internal/metrics"
)

// unitAt returns a 2-d unit vector whose cosine with (1, 0) is score.
func unitAt(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func queryCount(t *testing.T, m *metrics.Metrics, status string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "reporag_queries_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func newQueryService(t *testing.T, st *memstore.MemoryStore, llm *mockLLM, m *metrics.Metrics) *Service {
	t.Helper()
	emb := &mockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	return NewService(nil,
		NewRetrieveUseCase(emb, st, 0, nil),
		NewAnswerUseCase(llm, nil, 0, nil),
		st, 5, m, nil)
}

func TestServiceQueryTopK(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewMemoryStore()
	require.NoError(t, st.Upsert(ctx, "octo_repo_collection", []domain.EmbeddedDocument{
		{ID: "low", SourcePath: "low.go", Text: "low", Vector: unitAt(0.40)},
		{ID: "top", SourcePath: "top.go", Text: "top", Vector: unitAt(0.91)},
		{ID: "mid", SourcePath: "mid.go", Text: "mid", Vector: unitAt(0.75)},
	}))

	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).Return("answer", nil)
	m := metrics.New()
	svc := newQueryService(t, st, llm, m)

	answer, err := svc.QueryTopK(ctx, "octo_repo_collection", "where is top?", 2)
	require.NoError(t, err)
	require.Len(t, answer.ContextDocuments, 2)
	assert.Equal(t, "top.go", answer.ContextDocuments[0].SourcePath)
	assert.Equal(t, "mid.go", answer.ContextDocuments[1].SourcePath)

	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "### [1] top.go")
	assert.Contains(t, prompt, "### [2] mid.go")
	assert.NotContains(t, prompt, "low.go")

	assert.Equal(t, 1.0, queryCount(t, m, "ok"))
}

func TestServiceQueryEmptyCollectionStillAnswers(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewMemoryStore()
	require.NoError(t, st.Upsert(ctx, "empty_collection", nil))

	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).Return("general answer", nil)
	svc := newQueryService(t, st, llm, nil)

	answer, err := svc.Query(ctx, "empty_collection", "what is this?")
	require.NoError(t, err)
	assert.Empty(t, answer.ContextDocuments)
	assert.Equal(t, "general answer", answer.Text)
	llm.AssertNumberOfCalls(t, "Generate", 1)
}

func TestServiceQueryErrors(t *testing.T) {
	ctx := context.Background()
	llm := &mockLLM{}
	m := metrics.New()
	svc := newQueryService(t, memstore.NewMemoryStore(), llm, m)

	_, err := svc.Query(ctx, "  ", "q")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Query(ctx, "missing_collection", "q")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, queryCount(t, m, "invalid_input"))
	assert.Equal(t, 1.0, queryCount(t, m, "not_found"))
}

func TestServiceIngestRejectsBadReference(t *testing.T) {
	svc := NewService(nil, nil, nil, memstore.NewMemoryStore(), 0, nil, nil)
	_, err := svc.Ingest(context.Background(), "https://gitlab.com/a/b")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestServiceCollections(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewMemoryStore()
	require.NoError(t, st.Upsert(ctx, "b_collection", []domain.EmbeddedDocument{{ID: "1", Vector: []float32{1, 0}}}))
	require.NoError(t, st.Upsert(ctx, "a_collection", nil))

	svc := NewService(nil, nil, nil, st, 0, nil, nil)
	infos, err := svc.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a_collection", infos[0].Name)
	assert.Equal(t, 1, infos[1].Documents)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "ok", statusOf(nil))
	assert.Equal(t, "generation_error", statusOf(domain.NewError(domain.ErrGeneration, "x", nil)))
	assert.Equal(t, "error", statusOf(context.Canceled))
}
