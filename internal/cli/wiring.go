package cli

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"reporag/config"
	"reporag/internal/adapter/analyzer"
	"reporag/internal/adapter/cache"
	"reporag/internal/adapter/chunker"
	"reporag/internal/adapter/embedding"
	"reporag/internal/adapter/fs"
	"reporag/internal/adapter/github"
	"reporag/internal/adapter/llm"
	"reporag/internal/adapter/memstore"
	"reporag/internal/adapter/source"
	"reporag/internal/adapter/store"
	"reporag/internal/domain"
	"reporag/internal/logging"
	"reporag/internal/metrics"
	"reporag/internal/port"
	"reporag/internal/usecase"
)

// pipeline is everything a command needs, built from one config.
type pipeline struct {
	service *usecase.Service
	store   port.VectorCollection
}

func (p *pipeline) Close() error {
	return p.store.Close()
}

// buildOptions are the per-command knobs of buildPipeline.
type buildOptions struct {
	// Progress may be nil.
	Progress usecase.ProgressFunc
	// Rebuild drops every stored collection of the bolt store on open.
	Rebuild bool
}

// buildPipeline wires the configured providers.
func buildPipeline(cfg *config.Config, dir string, opts buildOptions, m *metrics.Metrics, logger *zap.Logger) (*pipeline, error) {
	logger = logging.OrNop(logger)

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	logger.Debug("embedder ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", embedder.ModelName()),
		zap.Int("dimension", embedder.Dimension()))

	model, err := newLanguageModel(cfg, m, logger)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg, dir, opts.Rebuild, logger)
	if err != nil {
		return nil, err
	}

	filter := fs.NewFilter(cfg.Ingest.Includes, cfg.Ingest.Excludes, cfg.Ingest.ExcludedExtensions, cfg.Ingest.MaxFileBytes)
	extractor := &source.Router{
		Local:  fs.NewWalker(filter),
		GitHub: github.NewExtractor(cfg.GitHub.APIURL, cfg.GitHub.Ref, cfg.GitHub.TokenEnv, filter),
	}

	var snapshotDir string
	if cfg.Ingest.Snapshot {
		snapshotDir = cfg.Ingest.SnapshotDir
	}

	ingest := usecase.NewIngestUseCase(extractor, chunker.NewLineChunker(cfg.Ingest.MaxChunkSize), embedder, st, usecase.IngestOptions{
		Workers:     cfg.Ingest.Workers,
		BatchSize:   cfg.Ingest.BatchSize,
		SnapshotDir: snapshotDir,
		Progress:    opts.Progress,
		Logger:      logger,
		Metrics:     m,
	})
	var queryEmbedder port.EmbeddingProvider = embedder
	if cfg.Retrieve.QueryCacheSize > 0 {
		queryEmbedder = cache.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(cfg.Retrieve.QueryCacheSize, cfg.Retrieve.QueryCacheTTL))
	}
	retrieve := usecase.NewRetrieveUseCase(queryEmbedder, st, cfg.Retrieve.MinScore, logger)
	answer := usecase.NewAnswerUseCase(model, analyzer.NewTokenizer(), cfg.Answer.ContextTokenBudget, logger)

	return &pipeline{
		service: usecase.NewService(ingest, retrieve, answer, st, cfg.Retrieve.TopK, m, logger),
		store:   st,
	}, nil
}

func newLanguageModel(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (port.LanguageModel, error) {
	if cfg.LLM.Provider != "openai" {
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
	client, err := llm.NewOpenAIClient(cfg.LLM.APIKeyEnv, cfg.LLM.Model, llm.Options{
		BaseURL:      cfg.LLM.BaseURL,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryBackoff: cfg.LLM.RetryBackoff,
		OnRetry: func(attempt int, err error) {
			m.GenerationRetried()
			logger.Warn("retrying generation", zap.Int("attempt", attempt), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}
	logger.Debug("language model ready", zap.String("model", client.ModelName()))
	return client, nil
}

func openStore(cfg *config.Config, dir string, rebuild bool, logger *zap.Logger) (port.VectorCollection, error) {
	if rebuild && cfg.Store.Backend != "bolt" {
		logger.Warn("rebuild only applies to the bolt store", zap.String("backend", cfg.Store.Backend))
	}
	switch cfg.Store.Backend {
	case "memory":
		return memstore.NewMemoryStore(), nil
	case "qdrant":
		var apiKey string
		if cfg.Store.Qdrant.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.Store.Qdrant.APIKeyEnv)
		}
		return store.NewQdrantStore(store.QdrantConfig{
			Host:   cfg.Store.Qdrant.Host,
			Port:   cfg.Store.Qdrant.Port,
			APIKey: apiKey,
			UseTLS: cfg.Store.Qdrant.UseTLS,
		})
	case "bolt":
		if err := cfg.EnsureStoreDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		st, err := store.OpenBolt(cfg.StorePath(dir))
		if err != nil {
			return nil, err
		}
		if err := prepareBolt(st, cfg, rebuild, logger); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

// prepareBolt brings the schema up to date. Collections are only dropped
// when rebuild is set; a changed embedding configuration is reported and
// left for the operator to resolve.
func prepareBolt(st *store.BoltStore, cfg *config.Config, rebuild bool, logger *zap.Logger) error {
	if rebuild {
		logger.Warn("rebuilding index, dropping existing collections")
		if err := st.Rebuild(cfg); err != nil {
			return domain.NewError(domain.ErrStorage, "rebuild store", err)
		}
		return nil
	}

	result, err := st.CheckMigration(cfg)
	if err != nil {
		return domain.NewError(domain.ErrStorage, "open store", err)
	}

	if result.Incompatible {
		return domain.NewError(domain.ErrStorage, "open store",
			fmt.Errorf("%s; re-ingest with --rebuild to recreate it", result.Reason))
	}
	if result.ConfigChanged {
		logger.Warn("stored vectors were built with a different embedding configuration, re-ingest with --rebuild to replace them",
			zap.String("reason", result.Reason))
	}
	if result.NeedsMigration {
		logger.Info("running schema migration", zap.String("reason", result.Reason))
	}

	if err := st.Migrate(cfg); err != nil {
		return domain.NewError(domain.ErrStorage, "migrate store", err)
	}
	return nil
}
