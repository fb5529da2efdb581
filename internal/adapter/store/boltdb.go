package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"reporag/internal/domain"
)

var (
	bucketCollections = []byte("collections")
	bucketStats       = []byte("stats")
	bucketDocs        = []byte("docs")
	keyMeta           = []byte("meta")
)

// BoltStore is a VectorCollection persisted in a single bbolt file. Each
// collection is a nested bucket holding its metadata and documents.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

type collectionMeta struct {
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type storedDocument struct {
	SourcePath string    `json:"path"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	StartLine  int       `json:"start_line"`
	EndLine    int       `json:"end_line"`
	Vector     []float32 `json:"v"`
}

// OpenBolt opens (creating if needed) the store at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, domain.NewError(domain.ErrStorage, "open store", fmt.Errorf("failed to open bolt db: %w", err))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCollections, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, domain.NewError(domain.ErrStorage, "open store", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Count returns the number of documents in a collection.
func (s *BoltStore) Count(ctx context.Context, collection string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if cb == nil {
			return domain.NotFound(collection)
		}
		n = cb.Bucket(bucketDocs).Stats().KeyN
		return nil
	})
	return n, wrapStorage(err, "count", collection)
}

// Collections lists every stored collection in name order.
func (s *BoltStore) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var infos []domain.CollectionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		return root.ForEach(func(name, v []byte) error {
			if v != nil {
				return nil
			}
			cb := root.Bucket(name)
			meta, err := readMeta(cb)
			if err != nil {
				return fmt.Errorf("collection %s: %w", name, err)
			}
			infos = append(infos, domain.CollectionInfo{
				Name:      string(name),
				Dimension: meta.Dimension,
				Metric:    meta.Metric,
				Documents: cb.Bucket(bucketDocs).Stats().KeyN,
				CreatedAt: meta.CreatedAt,
				UpdatedAt: meta.UpdatedAt,
			})
			return nil
		})
	})
	return infos, wrapStorage(err, "list collections", "")
}

func readMeta(cb *bbolt.Bucket) (collectionMeta, error) {
	var meta collectionMeta
	data := cb.Get(keyMeta)
	if data == nil {
		return meta, fmt.Errorf("missing collection metadata")
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode collection metadata: %w", err)
	}
	return meta, nil
}

func writeMeta(cb *bbolt.Bucket, meta collectionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return cb.Put(keyMeta, data)
}

// wrapStorage leaves typed errors alone and marks everything else as a
// storage failure.
func wrapStorage(err error, op, collection string) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != nil {
		return err
	}
	return domain.NewError(domain.ErrStorage, op, err).WithCollection(collection)
}
