// FilePath: api/resources/api.resource.devices.go
package resources

import (
	stderrors "errors"
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/errors"
	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/models"
	"github.com/pcdvisual/telemetry-hub/internal/validator"
)

// DeviceHandlers encapsulates the device command HTTP handlers
type DeviceHandlers struct {
	hub *hub.Hub
}

type commandResponse struct {
	Success bool                  `json:"success"`
	Command *models.DeviceCommand `json:"command,omitempty"`
	Error   *errors.APIError      `json:"error,omitempty"`
}

// @Summary Send a command to the pai device
// @Tags devices
// @Accept json
// @Produce json
// @Param command body models.CommandRequest true "Command"
// @Success 200 {object} commandResponse
// @Failure 400 {object} errors.APIError
// @Failure 503 {object} commandResponse
// @Router /api/esp32/command [post]
func (h *DeviceHandlers) SendCommand(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	body, err := readBody(r)
	if err != nil {
		respondWithError(w, errors.NewValidationError("failed to read request body", err).WithRequestID(requestID))
		return
	}

	cmd, err := h.hub.SendCommand(body)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, commandResponse{Success: true, Command: &cmd})
	case stderrors.Is(err, hub.ErrNotConnected):
		apiErr := errors.NewNotConnectedError("pai device not connected", err).WithRequestID(requestID)
		nuts.L.Warnf("[API] %s", apiErr.Error())
		respondWithJSON(w, apiErr.Code, commandResponse{Success: false, Error: apiErr})
	case validator.IsValidationError(err):
		respondWithError(w, errors.NewPayloadError("invalid command", err).WithRequestID(requestID))
	default:
		respondWithError(w, errors.NewInternalError("failed to send command", err).WithRequestID(requestID))
	}
}
