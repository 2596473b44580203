package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"webrag/internal/middleware"
	"webrag/internal/ragerr"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// Ingest handles POST /ingest-url: validate, create the pending job,
// enqueue the task, answer 202.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		URL      string         `json:"url"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid JSON body", http.StatusBadRequest)
		return
	}

	j, err := h.service.CreateAndEnqueue(ctx, req.URL, req.Metadata)
	if err != nil {
		if errors.Is(err, ragerr.ErrValidation) {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "failed to create ingestion job", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to create job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := map[string]any{
		"job_id":  j.ID,
		"status":  j.Status,
		"message": "job accepted",
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Status handles GET /status/{job_id}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("job_id")

	j, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ragerr.ErrJobNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "job not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to fetch job", "job_id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to fetch job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(j); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// ListFailed handles GET /jobs/failed.
func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobs, err := h.service.ListFailed(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list failed jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to list jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(jobs); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
