package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"
	"reporag/internal/domain"
)

const (
	payloadPath      = "source_path"
	payloadIndex     = "index"
	payloadText      = "text"
	payloadStartLine = "start_line"
	payloadEndLine   = "end_line"
)

// QdrantConfig addresses a Qdrant server over gRPC.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStore is a VectorCollection backed by a Qdrant server. Collections
// map one-to-one onto Qdrant collections using cosine distance.
type QdrantStore struct {
	client *qdrant.Client
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrStorage, "open qdrant", fmt.Errorf("failed to create Qdrant client: %w", err))
	}
	return &QdrantStore{client: client}, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Upsert creates the collection on the first non-empty batch; Qdrant needs a
// vector size up front, so an empty batch is a no-op.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []domain.EmbeddedDocument) error {
	dim, err := batchDimension(docs)
	if err != nil {
		return domain.NewError(domain.ErrStorage, "upsert", err).WithCollection(collection)
	}
	if dim == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection, dim); err != nil {
		return wrapStorage(err, "upsert", collection)
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, pointFromDocument(doc))
	}

	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return domain.NewError(domain.ErrStorage, "upsert", fmt.Errorf("failed to upsert points: %w", err)).WithCollection(collection)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if err := s.requireCollection(ctx, collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrStorage, "query", fmt.Errorf("failed to search points: %w", err)).WithCollection(collection)
	}

	return rankPoints(collection, points), nil
}

func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	if err := s.requireCollection(ctx, collection); err != nil {
		return 0, err
	}
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, domain.NewError(domain.ErrStorage, "count", err).WithCollection(collection)
	}
	return int(n), nil
}

func (s *QdrantStore) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, domain.NewError(domain.ErrStorage, "list collections", err)
	}
	sort.Strings(names)

	infos := make([]domain.CollectionInfo, 0, len(names))
	for _, name := range names {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return nil, domain.NewError(domain.ErrStorage, "collection info", err).WithCollection(name)
		}
		ci := domain.CollectionInfo{
			Name:      name,
			Dimension: vectorSize(info),
			Metric:    domain.MetricCosine,
		}
		if info.PointsCount != nil {
			ci.Documents = int(*info.PointsCount)
		}
		infos = append(infos, ci)
	}
	return infos, nil
}

func (s *QdrantStore) requireCollection(ctx context.Context, collection string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return domain.NewError(domain.ErrStorage, "check collection", err).WithCollection(collection)
	}
	if !exists {
		return domain.NotFound(collection)
	}
	return nil
}

// ensureCollection creates the collection or checks that its vector size
// matches dim.
func (s *QdrantStore) ensureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	if actual := vectorSize(info); actual != dim {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", actual, dim)
	}
	return nil
}

func pointFromDocument(doc domain.EmbeddedDocument) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(doc.ID),
		Vectors: qdrant.NewVectors(doc.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			payloadPath:      doc.SourcePath,
			payloadIndex:     int64(doc.Index),
			payloadText:      doc.Text,
			payloadStartLine: int64(doc.StartLine),
			payloadEndLine:   int64(doc.EndLine),
		}),
	}
}

// documentFromPayload rebuilds a stored document. Vectors are not fetched
// on query, so Vector stays nil.
func documentFromPayload(collection, id string, payload map[string]*qdrant.Value) domain.EmbeddedDocument {
	return domain.EmbeddedDocument{
		ID:         id,
		Collection: collection,
		SourcePath: payload[payloadPath].GetStringValue(),
		Index:      int(payload[payloadIndex].GetIntegerValue()),
		Text:       payload[payloadText].GetStringValue(),
		StartLine:  int(payload[payloadStartLine].GetIntegerValue()),
		EndLine:    int(payload[payloadEndLine].GetIntegerValue()),
	}
}

// rankPoints converts search hits into results. Qdrant orders by score
// only; ties are settled by ID.
func rankPoints(collection string, points []*qdrant.ScoredPoint) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, 0, len(points))
	for _, p := range points {
		doc := documentFromPayload(collection, p.GetId().GetUuid(), p.GetPayload())
		results = append(results, domain.RetrievalResult{Document: doc, Score: float64(p.GetScore())})
	}
	sort.SliceStable(results, func(i, j int) bool { return Less(results[i], results[j]) })
	return results
}

func vectorSize(info *qdrant.CollectionInfo) int {
	if info == nil || info.Config == nil || info.Config.Params == nil {
		return 0
	}
	if vc := info.Config.Params.GetVectorsConfig(); vc != nil {
		if params := vc.GetParams(); params != nil {
			return int(params.Size)
		}
	}
	return 0
}
