package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reporag/internal/adapter/snapshot"
	"reporag/internal/domain"
	"reporag/internal/logging"
	"reporag/internal/metrics"
	"reporag/internal/port"
)

// ProgressFunc reports embedding progress: chunks done out of total, and the
// file the last finished chunk belongs to.
type ProgressFunc func(done, total int, path string)

// IngestOptions tunes an IngestUseCase.
type IngestOptions struct {
	Workers     int
	BatchSize   int
	SnapshotDir string // empty disables the structured content snapshot
	Progress    ProgressFunc
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// IngestUseCase turns a repository into embedded documents in one collection.
type IngestUseCase struct {
	extractor  port.ContentExtractor
	normalizer port.Normalizer
	embedder   port.EmbeddingProvider
	store      port.VectorCollection
	opts       IngestOptions
	logger     *zap.Logger
}

func NewIngestUseCase(
	extractor port.ContentExtractor,
	normalizer port.Normalizer,
	embedder port.EmbeddingProvider,
	store port.VectorCollection,
	opts IngestOptions,
) *IngestUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	return &IngestUseCase{
		extractor:  extractor,
		normalizer: normalizer,
		embedder:   embedder,
		store:      store,
		opts:       opts,
		logger:     logging.OrNop(opts.Logger),
	}
}

// ChunkFailure records a chunk that was skipped because it could not be
// embedded. Reason is Err's message, kept for JSON output.
type ChunkFailure struct {
	Path   string `json:"path"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func newChunkFailure(c domain.Chunk, err error) ChunkFailure {
	err = domain.NewError(domain.ErrEmbedding, "embed chunk", err).WithChunk(c.SourcePath, c.Index)
	return ChunkFailure{
		Path:   c.SourcePath,
		Index:  c.Index,
		Reason: err.Error(),
		Err:    err,
	}
}

// IngestResult contains the results of an ingestion run.
type IngestResult struct {
	Collection        string         `json:"collection"`
	FilesExtracted    int            `json:"files_extracted"`
	ChunksCreated     int            `json:"chunks_created"`
	DocumentsUpserted int            `json:"documents_upserted"`
	Skipped           []ChunkFailure `json:"skipped,omitempty"`
	SnapshotPath      string         `json:"snapshot_path,omitempty"`
}

// Ingest extracts, chunks, embeds and stores a repository. Extraction and
// storage failures abort the run; a chunk that fails to embed is skipped and
// reported in the result.
func (u *IngestUseCase) Ingest(ctx context.Context, ref domain.RepoRef) (*IngestResult, error) {
	collection := ref.CollectionName()
	log := u.logger.With(zap.String("collection", collection))
	result := &IngestResult{Collection: collection}

	start := time.Now()
	records, err := u.extractor.Extract(ctx, ref)
	if err != nil {
		return nil, domain.NewError(domain.ErrExtraction, "extract "+ref.String(), err).WithCollection(collection)
	}
	u.opts.Metrics.ObserveStage("extract", start)
	u.opts.Metrics.FilesExtracted(len(records))
	result.FilesExtracted = len(records)
	log.Info("extracted repository", zap.String("repository", ref.String()), zap.Int("files", len(records)), zap.Duration("duration", time.Since(start)))

	if u.opts.SnapshotDir != "" {
		path, err := snapshot.Write(u.opts.SnapshotDir, ref.Name, records)
		if err != nil {
			log.Warn("failed to write snapshot", zap.Error(err))
		} else {
			result.SnapshotPath = path
		}
	}

	var chunks []domain.Chunk
	for _, rec := range records {
		chunks = append(chunks, u.normalizer.Normalize(rec)...)
	}
	result.ChunksCreated = len(chunks)

	start = time.Now()
	vectors, failures, err := u.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}
	u.opts.Metrics.ObserveStage("embed", start)
	for _, f := range failures {
		log.Warn("skipping chunk", zap.String("path", f.Path), zap.Int("chunk_index", f.Index), zap.Error(f.Err))
	}
	result.Skipped = failures

	docs := make([]domain.EmbeddedDocument, 0, len(chunks))
	for i, c := range chunks {
		if vectors[i] == nil {
			continue
		}
		docs = append(docs, domain.EmbeddedDocument{
			ID:         domain.DocumentID(collection, c.SourcePath, c.Index),
			Collection: collection,
			SourcePath: c.SourcePath,
			Index:      c.Index,
			Text:       c.Text,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Vector:     vectors[i],
		})
	}

	start = time.Now()
	if err := u.upsert(ctx, collection, docs); err != nil {
		return nil, err
	}
	u.opts.Metrics.ObserveStage("upsert", start)
	u.opts.Metrics.DocumentsUpserted(len(docs))
	result.DocumentsUpserted = len(docs)

	log.Info("ingestion complete",
		zap.Int("chunks", result.ChunksCreated),
		zap.Int("documents", result.DocumentsUpserted),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// embedAll embeds chunks on a bounded pool. vectors[i] is nil for chunk i
// when it failed; the error return is reserved for cancellation.
func (u *IngestUseCase) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float32, []ChunkFailure, error) {
	vectors := make([][]float32, len(chunks))
	failed := make([]error, len(chunks))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Workers)
	for i := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := chunks[i]
			v, err := u.embedder.Embed(gctx, c.Text)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed[i] = err
				u.opts.Metrics.EmbeddingFailed()
			} else {
				vectors[i] = v
				u.opts.Metrics.ChunkEmbedded()
			}

			if u.opts.Progress != nil {
				mu.Lock()
				done++
				u.opts.Progress(done, len(chunks), c.SourcePath)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var failures []ChunkFailure
	for i, err := range failed {
		if err == nil {
			continue
		}
		failures = append(failures, newChunkFailure(chunks[i], err))
	}
	return vectors, failures, nil
}

// upsert writes docs in batches. An empty document set still creates the
// collection.
func (u *IngestUseCase) upsert(ctx context.Context, collection string, docs []domain.EmbeddedDocument) error {
	if len(docs) == 0 {
		return storageError(u.store.Upsert(ctx, collection, nil), collection)
	}
	for i := 0; i < len(docs); i += u.opts.BatchSize {
		end := i + u.opts.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := u.store.Upsert(ctx, collection, docs[i:end]); err != nil {
			return storageError(err, collection)
		}
	}
	return nil
}

func storageError(err error, collection string) error {
	if err == nil || errors.Is(err, domain.ErrStorage) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NewError(domain.ErrStorage, "upsert", err).WithCollection(collection)
}
