// FilePath: api/resources/api.resource.status.go
package resources

import (
	"net/http"

	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/monitoring"
)

// StatusHandlers serves liveness, status and metrics
type StatusHandlers struct {
	hub        *hub.Hub
	monitoring *monitoring.Service
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// @Summary Health check
// @Tags status
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func (h *StatusHandlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: h.hub.Status().Version})
}

// @Summary System status
// @Description Uptime, module statuses, connection counts and the latest detection
// @Tags status
// @Produce json
// @Success 200 {object} models.StatusSummary
// @Router /api/status [get]
func (h *StatusHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.hub.Status())
}

// @Summary Lifecycle event counters
// @Tags status
// @Produce json
// @Success 200 {object} monitoring.Metrics
// @Router /api/metrics [get]
func (h *StatusHandlers) Metrics(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.monitoring.GetEventMetrics())
}
