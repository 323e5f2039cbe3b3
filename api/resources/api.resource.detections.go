// FilePath: api/resources/api.resource.detections.go
package resources

import (
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/errors"
	"github.com/pcdvisual/telemetry-hub/internal/hub"
)

// DetectionHandlers encapsulates the detection-related HTTP handlers
type DetectionHandlers struct {
	hub *hub.Hub
}

// @Summary Latest detection
// @Tags detections
// @Produce json
// @Success 200 {object} models.CurrentDetection
// @Router /api/detections/current [get]
func (h *DetectionHandlers) GetCurrent(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.hub.Current())
}

// @Summary Detection history
// @Description Most recent detections first
// @Tags detections
// @Produce json
// @Param limit query int false "Number of entries (1-200, default 20)"
// @Success 200 {object} models.HistoryPage
// @Router /api/detections/history [get]
func (h *DetectionHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.hub.History(getHistoryLimit(r)))
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// @Summary Submit a detection description
// @Description Routes the description exactly like a camera detection
// @Tags detections
// @Accept json
// @Produce json
// @Param description body models.DetectionMessage true "Description"
// @Success 200 {object} successResponse
// @Failure 400 {object} errors.APIError
// @Router /api/esp32-cam/send-description [post]
func (h *DetectionHandlers) SendDescription(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	body, err := readBody(r)
	if err != nil {
		respondWithError(w, errors.NewValidationError("failed to read request body", err).WithRequestID(requestID))
		return
	}

	if err := h.hub.SubmitDescription(body); err != nil {
		respondWithError(w, errors.NewPayloadError("invalid description", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse{Success: true, Message: "description broadcast"})
}
