package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"reporag/internal/domain"
)

// Walker extracts text files from a local directory tree.
type Walker struct {
	filter *Filter
}

func NewWalker(filter *Filter) *Walker {
	return &Walker{filter: filter}
}

func (w *Walker) Extract(ctx context.Context, ref domain.RepoRef) ([]domain.RawFileRecord, error) {
	if ref.Kind != domain.RepoLocal {
		return nil, fmt.Errorf("walker cannot read %s", ref)
	}

	root, err := filepath.Abs(ref.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	var records []domain.RawFileRecord
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(relPath)

		if info.IsDir() {
			if rel != "." && !w.filter.AcceptDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || !w.filter.AcceptPath(rel, info.Size()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		if !w.filter.AcceptContent(data) {
			return nil
		}

		records = append(records, domain.RawFileRecord{Path: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
