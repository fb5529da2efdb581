package fs

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

// Filter decides which repository files are textual and worth ingesting.
// Paths are slash-separated and relative to the repository root.
type Filter struct {
	includes     []string
	excludes     []string
	excludedExts map[string]struct{}
	maxBytes     int64
}

func NewFilter(includes, excludes, excludedExts []string, maxBytes int64) *Filter {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	exts := make(map[string]struct{}, len(excludedExts))
	for _, e := range excludedExts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Filter{
		includes:     includes,
		excludes:     excludes,
		excludedExts: exts,
		maxBytes:     maxBytes,
	}
}

// AcceptDir reports whether a directory should be descended into.
func (f *Filter) AcceptDir(rel string) bool {
	return !f.shouldExclude(rel) && !f.shouldExclude(rel+"/")
}

// AcceptPath applies the glob and extension rules, before any content is read.
func (f *Filter) AcceptPath(rel string, size int64) bool {
	if _, media := f.excludedExts[strings.ToLower(path.Ext(rel))]; media {
		return false
	}
	if f.maxBytes > 0 && size > f.maxBytes {
		return false
	}
	return f.shouldInclude(rel) && !f.shouldExclude(rel)
}

// AcceptContent sniffs the content and keeps only text.
func (f *Filter) AcceptContent(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (f *Filter) shouldInclude(p string) bool {
	for _, pattern := range f.includes {
		matched, err := doublestar.Match(pattern, p)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (f *Filter) shouldExclude(p string) bool {
	for _, pattern := range f.excludes {
		matched, err := doublestar.Match(pattern, p)
		if err == nil && matched {
			return true
		}
	}
	return false
}
