package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporag/internal/domain"
	"reporag/internal/metrics"
	"reporag/internal/usecase"
)

type fakePipeline struct {
	ingestRef string
	queryColl string
	queryK    int
	answer    *domain.Answer
	infos     []domain.CollectionInfo
	err       error
}

func (f *fakePipeline) Ingest(ctx context.Context, repoRef string) (*usecase.IngestResult, error) {
	f.ingestRef = repoRef
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.IngestResult{Collection: "octo_repo_collection", FilesExtracted: 2, DocumentsUpserted: 3}, nil
}

func (f *fakePipeline) QueryTopK(ctx context.Context, collection, question string, k int) (*domain.Answer, error) {
	f.queryColl = collection
	f.queryK = k
	return f.answer, f.err
}

func (f *fakePipeline) Query(ctx context.Context, collection, question string) (*domain.Answer, error) {
	return f.QueryTopK(ctx, collection, question, 0)
}

func (f *fakePipeline) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	return f.infos, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIngestEndpoint(t *testing.T) {
	p := &fakePipeline{}
	h := NewRouter(Deps{Pipeline: p})

	rec := do(t, h, http.MethodPost, "/ingest", `{"repository":"https://github.com/octo/repo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://github.com/octo/repo", p.ingestRef)

	var result usecase.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "octo_repo_collection", result.Collection)
	assert.Equal(t, 3, result.DocumentsUpserted)
}

func TestQueryEndpoint(t *testing.T) {
	p := &fakePipeline{answer: &domain.Answer{
		Query: "what?",
		Text:  "this.",
		ContextDocuments: []domain.EmbeddedDocument{
			{SourcePath: "main.go", Text: "package main", Vector: []float32{0.6, 0.8}},
		},
	}}
	h := NewRouter(Deps{Pipeline: p})

	rec := do(t, h, http.MethodPost, "/collections/octo_repo_collection/query", `{"question":"what?","k":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "octo_repo_collection", p.queryColl)
	assert.Equal(t, 2, p.queryK)
	assert.NotContains(t, rec.Body.String(), "vector")

	var answer domain.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "this.", answer.Text)
	require.Len(t, answer.ContextDocuments, 1)
	assert.Equal(t, "main.go", answer.ContextDocuments[0].SourcePath)
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.NewError(domain.ErrInvalidInput, "x", nil), http.StatusBadRequest},
		{"not found", domain.NotFound("missing"), http.StatusNotFound},
		{"extraction", domain.NewError(domain.ErrExtraction, "x", errors.New("404")), http.StatusUnprocessableEntity},
		{"embedding", domain.NewError(domain.ErrEmbedding, "x", nil), http.StatusBadGateway},
		{"generation", domain.NewError(domain.ErrGeneration, "x", nil), http.StatusBadGateway},
		{"storage", domain.NewError(domain.ErrStorage, "x", nil), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(Deps{Pipeline: &fakePipeline{err: tt.err}})
			rec := do(t, h, http.MethodPost, "/collections/c/query", `{"question":"q"}`)
			assert.Equal(t, tt.want, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestBadRequestBody(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})

	for _, body := range []string{`not json`, `{"question":"q","unknown":1}`, `{"question":"q","k":-1}`} {
		rec := do(t, h, http.MethodPost, "/collections/c/query", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestCollectionsAndHealth(t *testing.T) {
	p := &fakePipeline{infos: []domain.CollectionInfo{{Name: "a_collection", Dimension: 2, Documents: 4}}}
	h := NewRouter(Deps{Pipeline: p})

	rec := do(t, h, http.MethodGet, "/collections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Collections []domain.CollectionInfo `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Collections, 1)
	assert.Equal(t, 4, body.Collections[0].Documents)

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.QueryDone("ok")
	h := NewRouter(Deps{Pipeline: &fakePipeline{}, Metrics: m})

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reporag_queries_total{status="ok"} 1`)

	rec = do(t, NewRouter(Deps{Pipeline: &fakePipeline{}}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
