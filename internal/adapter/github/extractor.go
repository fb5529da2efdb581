package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"reporag/internal/adapter/fs"
	"reporag/internal/domain"
)

// Extractor reads a repository through the GitHub contents API, walking
// directories recursively and downloading each accepted file.
type Extractor struct {
	apiURL string
	ref    string
	token  string
	filter *fs.Filter
	client *http.Client
}

// NewExtractor builds an extractor for the given API root and branch. The
// token is read from tokenEnv and may be empty for public repositories.
func NewExtractor(apiURL, ref, tokenEnv string, filter *fs.Filter) *Extractor {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	if ref == "" {
		ref = "main"
	}
	var token string
	if tokenEnv != "" {
		token = os.Getenv(tokenEnv)
	}
	return &Extractor{
		apiURL: strings.TrimRight(apiURL, "/"),
		ref:    ref,
		token:  token,
		filter: filter,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type contentItem struct {
	Type        string `json:"type"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

func (e *Extractor) Extract(ctx context.Context, ref domain.RepoRef) ([]domain.RawFileRecord, error) {
	if ref.Kind != domain.RepoGitHub {
		return nil, fmt.Errorf("github extractor cannot read %s", ref)
	}

	var records []domain.RawFileRecord
	if err := e.walk(ctx, ref, "", &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (e *Extractor) walk(ctx context.Context, ref domain.RepoRef, dir string, out *[]domain.RawFileRecord) error {
	items, err := e.list(ctx, ref, dir)
	if err != nil {
		return err
	}

	for _, item := range items {
		switch item.Type {
		case "dir":
			if !e.filter.AcceptDir(item.Path) {
				continue
			}
			if err := e.walk(ctx, ref, item.Path, out); err != nil {
				return err
			}
		case "file":
			if !e.filter.AcceptPath(item.Path, item.Size) || item.DownloadURL == "" {
				continue
			}
			data, err := e.get(ctx, item.DownloadURL)
			if err != nil {
				return fmt.Errorf("failed to download %s: %w", item.Path, err)
			}
			if !e.filter.AcceptContent(data) {
				continue
			}
			*out = append(*out, domain.RawFileRecord{Path: item.Path, Content: string(data)})
		}
	}
	return nil
}

func (e *Extractor) list(ctx context.Context, ref domain.RepoRef, dir string) ([]contentItem, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		e.apiURL, url.PathEscape(ref.Owner), url.PathEscape(ref.Name), escapePath(dir), url.QueryEscape(e.ref))

	data, err := e.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	// A path naming a single file yields an object rather than a list.
	var items []contentItem
	if err := json.Unmarshal(data, &items); err != nil {
		var single contentItem
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("failed to decode contents of %q: %w", dir, err)
		}
		items = []contentItem{single}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func (e *Extractor) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
