package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reporag/internal/domain"
)

// Node is one entry of the structured content tree: a file with its
// content or a directory with its children.
type Node struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Contents []Node `json:"contents"`
}

// MarshalJSON always writes content for files and contents for directories,
// even when empty.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Type == "dir" {
		contents := n.Contents
		if contents == nil {
			contents = []Node{}
		}
		return json.Marshal(struct {
			Type     string `json:"type"`
			Path     string `json:"path"`
			Contents []Node `json:"contents"`
		}{n.Type, n.Path, contents})
	}
	return json.Marshal(struct {
		Type    string `json:"type"`
		Path    string `json:"path"`
		Content string `json:"content"`
	}{n.Type, n.Path, n.Content})
}

// Build nests flat records into a directory tree. Entries are sorted by path
// at every level.
func Build(records []domain.RawFileRecord) []Node {
	root := &dirNode{children: map[string]*dirNode{}}
	for _, r := range records {
		parts := strings.Split(r.Path, "/")
		cur := root
		for i := range parts[:len(parts)-1] {
			p := strings.Join(parts[:i+1], "/")
			next, ok := cur.children[p]
			if !ok {
				next = &dirNode{path: p, children: map[string]*dirNode{}}
				cur.children[p] = next
			}
			cur = next
		}
		cur.files = append(cur.files, Node{Type: "file", Path: r.Path, Content: r.Content})
	}
	return root.nodes()
}

type dirNode struct {
	path     string
	children map[string]*dirNode
	files    []Node
}

func (d *dirNode) nodes() []Node {
	out := append([]Node(nil), d.files...)
	for _, c := range d.children {
		out = append(out, Node{Type: "dir", Path: c.path, Contents: c.nodes()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// FileName is the snapshot file name for a repository.
func FileName(repoName string) string {
	return repoName + "_structured_content.json"
}

// Write saves the tree for records under dir and returns the file path.
func Write(dir, repoName string, records []domain.RawFileRecord) (string, error) {
	data, err := json.MarshalIndent(Build(records), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, FileName(repoName))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}
