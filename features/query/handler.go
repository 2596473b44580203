// Package query exposes the retrieval pipeline over HTTP.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"webrag/internal/middleware"
	"webrag/internal/ragerr"
	"webrag/internal/retrieval"
)

// Querier is the slice of the retrieval service the handler needs.
type Querier interface {
	Query(ctx context.Context, question string, topK int, filters map[string]any) (*retrieval.Result, error)
}

type Handler struct {
	service Querier
	maxTopK int
}

func NewHandler(s Querier, maxTopK int) *Handler {
	if maxTopK < 1 {
		maxTopK = 50
	}
	return &Handler{service: s, maxTopK: maxTopK}
}

// Query handles POST /query. A question that matches nothing is a 404 with
// the sentinel body, not an error; provider outages map to 503 (embedding)
// and 502 (generation) so callers can tell whose fault it was.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Question string         `json:"question"`
		TopK     int            `json:"top_k"`
		Filters  map[string]any `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.TopK < 0 || req.TopK > h.maxTopK {
		h.writeError(ctx, w, "VALIDATION_ERROR",
			fmt.Sprintf("top_k must be within 1..%d", h.maxTopK), http.StatusBadRequest)
		return
	}

	res, err := h.service.Query(ctx, req.Question, req.TopK, req.Filters)
	if err != nil {
		var ee *ragerr.EmbeddingError
		var ge *ragerr.GenerationError
		switch {
		case errors.Is(err, ragerr.ErrValidation):
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		case errors.As(err, &ee):
			slog.ErrorContext(ctx, "embedding provider unavailable", "error", err)
			h.writeError(ctx, w, "EMBEDDING_UNAVAILABLE", "embedding provider unavailable", http.StatusServiceUnavailable)
		case errors.As(err, &ge):
			slog.ErrorContext(ctx, "generation failed", "error", err)
			h.writeError(ctx, w, "GENERATION_FAILED", "generation provider failed", http.StatusBadGateway)
		default:
			slog.ErrorContext(ctx, "query failed", "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", "query failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if res.NoContext() {
		w.WriteHeader(http.StatusNotFound)
	}
	if err := json.NewEncoder(w).Encode(res); err != nil {
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
