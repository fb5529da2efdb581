package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporag/config"
)

func newEmbeddingServer(t *testing.T, status int, vector []float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "boom", "type": "server_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test-model",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "test-key")
	srv := newEmbeddingServer(t, http.StatusOK, []float32{3, 4})

	e, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "test-model", srv.URL+"/v1", 2)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
}

func TestOpenAIEmbedderDimensionMismatch(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "test-key")
	srv := newEmbeddingServer(t, http.StatusOK, []float32{1, 2, 3})

	e, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "test-model", srv.URL+"/v1", 2)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestOpenAIEmbedderServerError(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "test-key")
	srv := newEmbeddingServer(t, http.StatusInternalServerError, nil)

	e, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "test-model", srv.URL+"/v1", 0)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestOpenAIEmbedderMissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	_, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "m", "", 0)
	assert.Error(t, err)
}

func TestOpenAIEmbedderEmptyText(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "test-key")
	e, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "m", "http://127.0.0.1:0/v1", 0)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "")
	assert.Error(t, err)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(128)

	a, err := e.Embed(ctx, "func parseConfig(path string) error")
	require.NoError(t, err)
	require.Len(t, a, 128)
	assert.InDelta(t, 1.0, norm(a), 1e-5)

	again, err := e.Embed(ctx, "func parseConfig(path string) error")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	related, err := e.Embed(ctx, "how is the config parsed from a path")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "zebra giraffe savannah")
	require.NoError(t, err)
	assert.Greater(t, dot(a, related), dot(a, unrelated))

	short, err := e.Embed(ctx, "{}")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(short), 1e-5)

	// Whitespace-only chunks occur inside long blank runs and must still embed.
	blank, err := e.Embed(ctx, " \n\t")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(blank), 1e-5)

	_, err = e.Embed(ctx, "")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "hash", Dimension: 32})
	require.NoError(t, err)
	assert.Equal(t, "hash", e.ModelName())
	assert.Equal(t, 32, e.Dimension())

	t.Setenv("TEST_EMBED_KEY", "test-key")
	e, err = New(config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", APIKeyEnv: "TEST_EMBED_KEY", Dimension: 1536})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.ModelName())
	assert.Equal(t, 1536, e.Dimension())

	_, err = New(config.EmbeddingConfig{Provider: "word2vec"})
	assert.ErrorContains(t, err, "unsupported embedding provider")
}
