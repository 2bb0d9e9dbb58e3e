package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/arena/pkg/metrics"
)

const dbCheckTimeout = 2 * time.Second

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, storage checks and metrics.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type statusResponse struct {
	Status string `json:"status"`
}

// HandleHealth handles GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// HandleDBCheck handles GET /db-check by pinging storage.
func (h *HealthHandler) HandleDBCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.db_check"
	ctx, cancel := context.WithTimeout(r.Context(), dbCheckTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeFailure(w, WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// HandleMetrics serves the service's Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
