package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every pipeline failure matches exactly one with errors.Is.
var (
	ErrExtraction   = errors.New("extraction failed")
	ErrEmbedding    = errors.New("embedding failed")
	ErrStorage      = errors.New("storage failed")
	ErrNotFound     = errors.New("collection not found")
	ErrGeneration   = errors.New("generation failed")
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries a kind plus whatever context locates the failure.
type Error struct {
	Kind       error
	Op         string
	Collection string
	Path       string
	Index      int
	Err        error
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Index: -1, Err: err}
}

// WithCollection returns e annotated with the collection name.
func (e *Error) WithCollection(name string) *Error {
	e.Collection = name
	return e
}

// WithChunk returns e annotated with the chunk location.
func (e *Error) WithChunk(path string, index int) *Error {
	e.Path = path
	e.Index = index
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())

	var loc []string
	if e.Collection != "" {
		loc = append(loc, "collection="+e.Collection)
	}
	if e.Path != "" {
		loc = append(loc, "path="+e.Path)
	}
	if e.Index >= 0 {
		loc = append(loc, fmt.Sprintf("chunk=%d", e.Index))
	}
	if len(loc) > 0 {
		b.WriteString(" (" + strings.Join(loc, " ") + ")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// NotFound reports a missing collection.
func NotFound(collection string) error {
	return &Error{Kind: ErrNotFound, Collection: collection, Index: -1}
}

// KindOf returns the kind sentinel err matches, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrInvalidInput, ErrNotFound, ErrExtraction, ErrEmbedding, ErrStorage, ErrGeneration} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
