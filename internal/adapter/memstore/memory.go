package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reporag/internal/adapter/store"
	"reporag/internal/domain"
)

// MemoryStore is a VectorCollection held entirely in memory. It is used for
// dry runs and tests; nothing survives the process.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	info domain.CollectionInfo
	docs map[string]domain.EmbeddedDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collection)}
}

func (s *MemoryStore) Upsert(ctx context.Context, name string, docs []domain.EmbeddedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dim := 0
	for _, doc := range docs {
		if len(doc.Vector) == 0 || (dim != 0 && len(doc.Vector) != dim) {
			return domain.NewError(domain.ErrStorage, "upsert", fmt.Errorf("inconsistent vector dimension in batch")).WithCollection(name)
		}
		dim = len(doc.Vector)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{
			info: domain.CollectionInfo{Name: name, Metric: domain.MetricCosine, CreatedAt: now},
			docs: make(map[string]domain.EmbeddedDocument),
		}
	}
	if dim > 0 && c.info.Dimension != 0 && c.info.Dimension != dim {
		return domain.NewError(domain.ErrStorage, "upsert",
			fmt.Errorf("vector dimension mismatch: expected %d, got %d", c.info.Dimension, dim)).WithCollection(name)
	}
	if dim > 0 {
		c.info.Dimension = dim
	}

	for _, doc := range docs {
		doc.Collection = name
		doc.Vector = append([]float32(nil), doc.Vector...)
		c.docs[doc.ID] = doc
	}
	c.info.UpdatedAt = now
	s.collections[name] = c
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, name string, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, domain.NotFound(name)
	}
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}
	if c.info.Dimension != 0 && len(vector) != c.info.Dimension {
		return nil, domain.NewError(domain.ErrStorage, "query",
			fmt.Errorf("query dimension mismatch: expected %d, got %d", c.info.Dimension, len(vector))).WithCollection(name)
	}

	ranker := store.NewRanker(min(k, len(c.docs)))
	for _, doc := range c.docs {
		ranker.Add(doc, store.CosineSimilarity(vector, doc.Vector))
	}
	results := ranker.Results()
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	return results, nil
}

func (s *MemoryStore) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return 0, domain.NotFound(name)
	}
	return len(c.docs), nil
}

func (s *MemoryStore) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.CollectionInfo, 0, len(s.collections))
	for _, c := range s.collections {
		info := c.info
		info.Documents = len(c.docs)
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
