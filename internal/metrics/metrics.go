package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	filesExtracted    prometheus.Counter
	chunksEmbedded    prometheus.Counter
	embeddingFailures prometheus.Counter
	documentsUpserted prometheus.Counter
	queries           *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	generationRetries prometheus.Counter
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		filesExtracted: f.NewCounter(prometheus.CounterOpts{
			Name: "reporag_files_extracted_total",
			Help: "Files read from repositories during ingestion.",
		}),
		chunksEmbedded: f.NewCounter(prometheus.CounterOpts{
			Name: "reporag_chunks_embedded_total",
			Help: "Chunks successfully embedded.",
		}),
		embeddingFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "reporag_embedding_failures_total",
			Help: "Chunks skipped because embedding failed.",
		}),
		documentsUpserted: f.NewCounter(prometheus.CounterOpts{
			Name: "reporag_documents_upserted_total",
			Help: "Documents written to vector collections.",
		}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reporag_queries_total",
			Help: "Questions answered, by outcome.",
		}, []string{"status"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reporag_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		generationRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "reporag_generation_retries_total",
			Help: "Language model calls retried after a transient failure.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FilesExtracted(n int) {
	if m != nil {
		m.filesExtracted.Add(float64(n))
	}
}

func (m *Metrics) ChunkEmbedded() {
	if m != nil {
		m.chunksEmbedded.Inc()
	}
}

func (m *Metrics) EmbeddingFailed() {
	if m != nil {
		m.embeddingFailures.Inc()
	}
}

func (m *Metrics) DocumentsUpserted(n int) {
	if m != nil {
		m.documentsUpserted.Add(float64(n))
	}
}

// QueryDone counts an answered question; status is "ok" or the error kind.
func (m *Metrics) QueryDone(status string) {
	if m != nil {
		m.queries.WithLabelValues(status).Inc()
	}
}

// ObserveStage records how long a stage ran since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m != nil {
		m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) GenerationRetried() {
	if m != nil {
		m.generationRetries.Inc()
	}
}

// WriteTextfile writes the current values in the node_exporter textfile
// format, for CLI runs that exit before anything could scrape them.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
