package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

const healthCheckTimeout = 3 * time.Second

// QueueStatter reports job queue depth.
type QueueStatter interface {
	Stats(ctx context.Context) (domain.QueueStats, error)
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	queue    QueueStatter
	critical map[string]CheckFunc
	optional map[string]CheckFunc
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. A failing critical check turns
// the response into a 503; optional checks are only reported.
func NewHealthHandler(queue QueueStatter, critical, optional map[string]CheckFunc, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		queue:    queue,
		critical: critical,
		optional: optional,
		logger:   logHandler(logger, "health"),
	}
}

type healthResponse struct {
	Status    string             `json:"status"`
	Timestamp string             `json:"timestamp"`
	Queue     *domain.QueueStats `json:"queue,omitempty"`
	Checks    map[string]string  `json:"checks"`
}

// HealthCheck reports queue depth and datastore connectivity.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]string{},
	}
	status := http.StatusOK

	for _, name := range sortedKeys(h.critical) {
		if err := h.critical[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "dependency down", slog.String("dependency", name), slog.String("error", err.Error()))
			resp.Checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	for _, name := range sortedKeys(h.optional) {
		if err := h.optional[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if h.queue != nil {
		stats, err := h.queue.Stats(ctx)
		if err != nil {
			resp.Checks["queue"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Queue = &stats
		}
	}

	if status != http.StatusOK {
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

func sortedKeys(m map[string]CheckFunc) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
