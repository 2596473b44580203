// Package health probes the service's dependencies and reports aggregate
// readiness. Always answers 200; degradation shows in the body so load
// balancers keep routing while operators see what broke.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const probeTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type ReadyChecker interface {
	Ready(ctx context.Context) bool
}

type QueuePinger interface {
	Ping() error
}

type Handler struct {
	db    Pinger
	index ReadyChecker
	queue QueuePinger
}

func NewHandler(db Pinger, index ReadyChecker, queue QueuePinger) *Handler {
	return &Handler{db: db, index: index, queue: queue}
}

type serviceStatus struct {
	OK bool `json:"ok"`
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	services := map[string]serviceStatus{
		"postgres": {OK: h.db != nil && h.db.PingContext(ctx) == nil},
		"weaviate": {OK: h.index != nil && h.index.Ready(ctx)},
		"nsq":      {OK: h.queue != nil && h.queue.Ping() == nil},
	}

	status := "ok"
	for _, s := range services {
		if !s.OK {
			status = "degraded"
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"status":   status,
		"services": services,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
