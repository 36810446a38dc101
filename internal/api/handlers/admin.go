package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cortexflow/scheduler-core/internal/logger"
	"github.com/cortexflow/scheduler-core/internal/manager"
	"github.com/cortexflow/scheduler-core/internal/provider"
	"github.com/cortexflow/scheduler-core/internal/worker"
)

// AdminHandler exposes operational visibility into the Queue Manager,
// Worker Pool, and Provider Registry. There is no dead-letter queue in
// this domain, so admin surfaces composed health and discovery instead
// of DLQ replay/purge operations.
type AdminHandler struct {
	manager  *manager.Manager
	pool     *worker.Pool
	registry *provider.Registry
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(mgr *manager.Manager, pool *worker.Pool, registry *provider.Registry) *AdminHandler {
	return &AdminHandler{
		manager:  mgr,
		pool:     pool,
		registry: registry,
	}
}

// ListWorkers handles GET /admin/workers
func (h *AdminHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	health := h.pool.Health(r.Context())
	h.respondJSON(w, http.StatusOK, health)
}

// GetQueues handles GET /admin/queues
func (h *AdminHandler) GetQueues(w http.ResponseWriter, r *http.Request) {
	health := h.manager.Health(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"queueDepth": health.QueueMetrics.QueueDepth,
		"totalDepth": health.QueueMetrics.TotalDepth,
	})
}

// ListProviders handles GET /admin/providers
func (h *AdminHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.registry.Capabilities(),
	})
}

// ProviderHealth handles GET /admin/providers/health
func (h *AdminHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	results := h.registry.CheckHealth(r.Context())
	allHealthy := true
	for _, res := range results {
		if !res.IsHealthy {
			allHealthy = false
			break
		}
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}

	h.respondJSON(w, status, map[string]interface{}{
		"healthy":   allHealthy,
		"providers": results,
	})
}

// ScaleWorkers handles POST /admin/workers/scale, spec.md §4.F's
// "invoked on demand" allowance for the scaling policy.
func (h *AdminHandler) ScaleWorkers(w http.ResponseWriter, r *http.Request) {
	h.pool.ScaleWorkers(r.Context())
	logger.Info().Msg("admin: on-demand worker scaling triggered")
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workerCount": h.pool.WorkerCount(),
	})
}

// HealthCheck handles GET /admin/health
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mgrHealth := h.manager.Health(r.Context())
	if !mgrHealth.IsHealthy {
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"queue":  mgrHealth,
		})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"queue":  mgrHealth,
	})
}

func (h *AdminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}
