package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawFileRecord is the textual content of one repository file.
type RawFileRecord struct {
	Path    string
	Content string
}

// Chunk is a contiguous piece of a RawFileRecord. Concatenating every chunk
// of a path in Index order yields the original content.
type Chunk struct {
	SourcePath string
	Index      int
	Text       string
	StartLine  int
	EndLine    int
}

// EmbeddedDocument is a chunk paired with its vector, as stored in a collection.
type EmbeddedDocument struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	SourcePath string    `json:"source_path"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	StartLine  int       `json:"start_line"`
	EndLine    int       `json:"end_line"`
	Vector     []float32 `json:"vector,omitempty"`
}

type RetrievalResult struct {
	Document EmbeddedDocument `json:"document"`
	Score    float64          `json:"score"`
}

// Answer is the synthesized response to a query.
type Answer struct {
	Query            string             `json:"query"`
	ContextDocuments []EmbeddedDocument `json:"context_documents"`
	Text             string             `json:"text"`
}

// CollectionInfo describes a stored collection.
type CollectionInfo struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	Documents int       `json:"documents"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const MetricCosine = "cosine"

// DocumentID derives the stable identifier of a chunk. The same
// (collection, path, index) always maps to the same UUID.
func DocumentID(collection, sourcePath string, index int) string {
	name := fmt.Sprintf("%s/%s#%d", collection, filepath.ToSlash(sourcePath), index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// RepoKind tells extractors where a repository lives.
type RepoKind int

const (
	RepoLocal RepoKind = iota
	RepoGitHub
)

// RepoRef identifies the repository being ingested.
type RepoRef struct {
	Kind  RepoKind
	Raw   string
	Owner string
	Name  string
	Path  string
}

// ParseRepoRef accepts a GitHub URL (https://github.com/owner/repo), the
// short form github.com/owner/repo, or a local directory path.
func ParseRepoRef(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, NewError(ErrInvalidInput, "parse repository", fmt.Errorf("empty repository reference"))
	}

	candidate := raw
	if strings.HasPrefix(candidate, "github.com/") {
		candidate = "https://" + candidate
	}
	if u, err := url.Parse(candidate); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if !strings.EqualFold(u.Host, "github.com") && !strings.EqualFold(u.Host, "www.github.com") {
			return RepoRef{}, NewError(ErrInvalidInput, "parse repository", fmt.Errorf("unsupported repository host: %s", u.Host))
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return RepoRef{}, NewError(ErrInvalidInput, "parse repository", fmt.Errorf("expected github.com/<owner>/<repo>, got %s", raw))
		}
		return RepoRef{
			Kind:  RepoGitHub,
			Raw:   raw,
			Owner: parts[0],
			Name:  strings.TrimSuffix(parts[1], ".git"),
		}, nil
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return RepoRef{}, NewError(ErrInvalidInput, "parse repository", err)
	}
	return RepoRef{
		Kind: RepoLocal,
		Raw:  raw,
		Name: filepath.Base(abs),
		Path: abs,
	}, nil
}

// CollectionName is the one collection a repository is ingested into.
func (r RepoRef) CollectionName() string {
	if r.Kind == RepoGitHub {
		return sanitizeName(r.Owner + "_" + r.Name + "_collection")
	}
	return sanitizeName(r.Name + "_collection")
}

func (r RepoRef) String() string {
	if r.Kind == RepoGitHub {
		return "github.com/" + r.Owner + "/" + r.Name
	}
	return r.Path
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
