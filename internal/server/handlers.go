package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reporag/internal/domain"
)

type handlers struct {
	pipeline Pipeline
	logger   *zap.Logger
}

type ingestRequest struct {
	Repository string `json:"repository"`
}

type queryRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), req.Repository)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.K < 0 {
		h.fail(w, r, domain.NewError(domain.ErrInvalidInput, "query", fmt.Errorf("k must not be negative, got %d", req.K)))
		return
	}

	collection := chi.URLParam(r, "name")
	var (
		answer *domain.Answer
		err    error
	)
	if req.K > 0 {
		answer, err = h.pipeline.QueryTopK(r.Context(), collection, req.Question, req.K)
	} else {
		answer, err = h.pipeline.Query(r.Context(), collection, req.Question)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withoutVectors(answer))
}

func (h *handlers) collections(w http.ResponseWriter, r *http.Request) {
	infos, err := h.pipeline.Collections(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": infos})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// StatusCode maps an error kind to the HTTP status reported for it.
func StatusCode(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrExtraction:
		return http.StatusUnprocessableEntity
	case domain.ErrEmbedding, domain.ErrGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.NewError(domain.ErrInvalidInput, "decode request", errors.New("request body too large"))
		}
		return domain.NewError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// withoutVectors drops embeddings from the context documents; clients only
// need the text and its location.
func withoutVectors(a *domain.Answer) *domain.Answer {
	out := *a
	out.ContextDocuments = make([]domain.EmbeddedDocument, len(a.ContextDocuments))
	for i, d := range a.ContextDocuments {
		d.Vector = nil
		out.ContextDocuments[i] = d
	}
	return &out
}
