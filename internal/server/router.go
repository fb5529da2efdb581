package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reporag/internal/domain"
	"reporag/internal/logging"
	"reporag/internal/metrics"
	"reporag/internal/usecase"
)

// Pipeline is what the HTTP surface needs from usecase.Service.
type Pipeline interface {
	Ingest(ctx context.Context, repoRef string) (*usecase.IngestResult, error)
	QueryTopK(ctx context.Context, collection, question string, k int) (*domain.Answer, error)
	Query(ctx context.Context, collection, question string) (*domain.Answer, error)
	Collections(ctx context.Context) ([]domain.CollectionInfo, error)
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Pipeline Pipeline
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewRouter creates the HTTP router.
func NewRouter(deps Deps) http.Handler {
	logger := logging.OrNop(deps.Logger)
	h := &handlers{pipeline: deps.Pipeline, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", h.health)
	r.Post("/ingest", h.ingest)
	r.Get("/collections", h.collections)
	r.Post("/collections/{name}/query", h.query)

	if reg := deps.Metrics.Registry(); reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
