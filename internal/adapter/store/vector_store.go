package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"reporag/internal/domain"
)

// Upsert adds or overwrites documents in a collection, creating it on first
// use. The first non-empty batch fixes the collection's dimension.
func (s *BoltStore) Upsert(ctx context.Context, collection string, docs []domain.EmbeddedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if collection == "" {
		return domain.NewError(domain.ErrStorage, "upsert", fmt.Errorf("empty collection name"))
	}

	dim, err := batchDimension(docs)
	if err != nil {
		return domain.NewError(domain.ErrStorage, "upsert", err).WithCollection(collection)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		now := s.now().UTC()

		root := tx.Bucket(bucketCollections)
		cb := root.Bucket([]byte(collection))
		var meta collectionMeta
		if cb == nil {
			if cb, err = root.CreateBucket([]byte(collection)); err != nil {
				return fmt.Errorf("failed to create collection bucket: %w", err)
			}
			if _, err := cb.CreateBucket(bucketDocs); err != nil {
				return fmt.Errorf("failed to create docs bucket: %w", err)
			}
			meta = collectionMeta{Metric: domain.MetricCosine, CreatedAt: now}
		} else if meta, err = readMeta(cb); err != nil {
			return err
		}

		if dim > 0 {
			if meta.Dimension == 0 {
				meta.Dimension = dim
			} else if meta.Dimension != dim {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", meta.Dimension, dim)
			}
		}

		b := cb.Bucket(bucketDocs)
		for _, doc := range docs {
			stored := storedDocument{
				SourcePath: doc.SourcePath,
				Index:      doc.Index,
				Text:       doc.Text,
				StartLine:  doc.StartLine,
				EndLine:    doc.EndLine,
				Vector:     doc.Vector,
			}
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(doc.ID), data); err != nil {
				return err
			}
		}

		meta.UpdatedAt = now
		return writeMeta(cb, meta)
	})
	return wrapStorage(err, "upsert", collection)
}

// Query scores every document in the collection against vector and returns
// the k best.
func (s *BoltStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []domain.RetrievalResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if cb == nil {
			return domain.NotFound(collection)
		}
		if k <= 0 {
			return nil
		}

		meta, err := readMeta(cb)
		if err != nil {
			return err
		}
		if meta.Dimension != 0 && len(vector) != meta.Dimension {
			return fmt.Errorf("query dimension mismatch: expected %d, got %d", meta.Dimension, len(vector))
		}

		ranker := NewRanker(k)
		err = cb.Bucket(bucketDocs).ForEach(func(id, v []byte) error {
			var stored storedDocument
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("failed to decode document %s: %w", id, err)
			}
			ranker.Add(domain.EmbeddedDocument{
				ID:         string(id),
				Collection: collection,
				SourcePath: stored.SourcePath,
				Index:      stored.Index,
				Text:       stored.Text,
				StartLine:  stored.StartLine,
				EndLine:    stored.EndLine,
				Vector:     stored.Vector,
			}, CosineSimilarity(vector, stored.Vector))
			return nil
		})
		if err != nil {
			return err
		}

		results = ranker.Results()
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err, "query", collection)
	}
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	return results, nil
}

// batchDimension checks that every vector in docs has the same non-zero
// length and returns it, or 0 for an empty batch.
func batchDimension(docs []domain.EmbeddedDocument) (int, error) {
	dim := 0
	for _, doc := range docs {
		if doc.ID == "" {
			return 0, fmt.Errorf("document %s#%d has no id", doc.SourcePath, doc.Index)
		}
		if len(doc.Vector) == 0 {
			return 0, fmt.Errorf("document %s has an empty vector", doc.ID)
		}
		if dim == 0 {
			dim = len(doc.Vector)
		} else if len(doc.Vector) != dim {
			return 0, fmt.Errorf("vector dimension mismatch within batch: expected %d, got %d", dim, len(doc.Vector))
		}
	}
	return dim, nil
}
