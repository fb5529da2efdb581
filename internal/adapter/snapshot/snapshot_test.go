package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporag/internal/domain"
)

func TestBuild(t *testing.T) {
	records := []domain.RawFileRecord{
		{Path: "src/util/strings.go", Content: "package util"},
		{Path: "README.md", Content: "# hi"},
		{Path: "src/main.go", Content: "package main"},
	}

	tree := Build(records)
	want := []Node{
		{Type: "file", Path: "README.md", Content: "# hi"},
		{Type: "dir", Path: "src", Contents: []Node{
			{Type: "file", Path: "src/main.go", Content: "package main"},
			{Type: "dir", Path: "src/util", Contents: []Node{
				{Type: "file", Path: "src/util/strings.go", Content: "package util"},
			}},
		}},
	}
	assert.Equal(t, want, tree)
}

func TestWriteEmptyFileKeepsContent(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, "hello", []domain.RawFileRecord{
		{Path: "a.txt", Content: "A"},
		{Path: "b.txt", Content: ""},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, map[string]any{"type": "file", "path": "b.txt", "content": ""}, raw[1])
	assert.NotContains(t, raw[1], "contents")
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := Write(dir, "hello", []domain.RawFileRecord{{Path: "a.txt", Content: "A"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hello_structured_content.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var nodes []Node
	require.NoError(t, json.Unmarshal(data, &nodes))
	assert.Equal(t, []Node{{Type: "file", Path: "a.txt", Content: "A"}}, nodes)
}
