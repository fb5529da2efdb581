package memstore

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"reporag/internal/domain"
)

func TestMemoryStoreUpsertQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	docs := []domain.EmbeddedDocument{
		{ID: "a", SourcePath: "a.txt", Vector: []float32{1, 0}},
		{ID: "b", SourcePath: "b.txt", Vector: []float32{0, 1}},
		{ID: "c", SourcePath: "c.txt", Vector: []float32{1, 1}},
	}
	if err := s.Upsert(ctx, "col", docs); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "col", docs[:1]); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx, "col")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 documents, got %d", n)
	}

	results, err := s.Query(ctx, "col", []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Document.ID != "a" || results[1].Document.ID != "c" {
		t.Errorf("unexpected results: %+v", results)
	}
	if results[0].Document.Collection != "col" {
		t.Errorf("expected collection to be set, got %q", results[0].Document.Collection)
	}
}

func TestMemoryStoreQueryHugeK(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	docs := []domain.EmbeddedDocument{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	}
	if err := s.Upsert(ctx, "col", docs); err != nil {
		t.Fatal(err)
	}

	results, err := s.Query(ctx, "col", []float32{1, 0}, math.MaxInt)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Document.ID != "a" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Query(ctx, "nope", []float32{1}, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.Upsert(ctx, "col", []domain.EmbeddedDocument{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, "col", []domain.EmbeddedDocument{{ID: "b", Vector: []float32{1, 0, 0}}})
	if !errors.Is(err, domain.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Upsert(ctx, "col", []domain.EmbeddedDocument{{ID: "seed", Vector: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			doc := domain.EmbeddedDocument{ID: domain.DocumentID("col", "f", i), Vector: []float32{float32(i), 1}}
			if err := s.Upsert(ctx, "col", []domain.EmbeddedDocument{doc}); err != nil {
				t.Error(err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := s.Query(ctx, "col", []float32{1, 0}, 3); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	n, _ := s.Count(ctx, "col")
	if n != 9 {
		t.Errorf("expected 9 documents, got %d", n)
	}
}
