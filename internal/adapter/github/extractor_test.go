package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporag/internal/adapter/fs"
	"reporag/internal/domain"
)

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server

	files := map[string]string{
		"/raw/README.md":    "# Hello\n",
		"/raw/src/main.go":  "package main\n",
		"/raw/src/logo.png": "\x89PNG\r\n\x1a\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/hello/contents/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var items []map[string]any
		switch r.URL.Path {
		case "/repos/octo/hello/contents/":
			items = []map[string]any{
				{"type": "file", "path": "README.md", "size": 8, "download_url": srv.URL + "/raw/README.md"},
				{"type": "dir", "path": "src"},
				{"type": "dir", "path": "node_modules"},
			}
		case "/repos/octo/hello/contents/src":
			items = []map[string]any{
				{"type": "file", "path": "src/main.go", "size": 13, "download_url": srv.URL + "/raw/src/main.go"},
				{"type": "file", "path": "src/logo.png", "size": 8, "download_url": srv.URL + "/raw/src/logo.png"},
			}
		default:
			t.Errorf("unexpected listing %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(items)
	})
	mux.HandleFunc("/raw/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/raw/src/logo.png" {
			t.Error("excluded media file should not be downloaded")
		}
		content, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(content))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract(t *testing.T) {
	srv := fakeGitHub(t)
	t.Setenv("TEST_GH_TOKEN", "secret")

	filter := fs.NewFilter(nil, []string{"node_modules", "**/node_modules/**"}, []string{".png"}, 0)
	e := NewExtractor(srv.URL, "dev", "TEST_GH_TOKEN", filter)

	ref, err := domain.ParseRepoRef("https://github.com/octo/hello")
	require.NoError(t, err)

	records, err := e.Extract(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []domain.RawFileRecord{
		{Path: "README.md", Content: "# Hello\n"},
		{Path: "src/main.go", Content: "package main\n"},
	}, records)
}

func TestExtractNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	e := NewExtractor(srv.URL, "main", "", fs.NewFilter(nil, nil, nil, 0))
	ref, err := domain.ParseRepoRef("https://github.com/octo/missing")
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), ref)
	assert.ErrorContains(t, err, "404")
}

func TestExtractRejectsLocal(t *testing.T) {
	e := NewExtractor("", "", "", fs.NewFilter(nil, nil, nil, 0))
	_, err := e.Extract(context.Background(), domain.RepoRef{Kind: domain.RepoLocal, Path: "/tmp"})
	assert.Error(t, err)
}
