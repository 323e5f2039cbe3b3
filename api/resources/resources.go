// FilePath: api/resources/resources.go
package resources

import (
	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/monitoring"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Status     *StatusHandlers
	Detections *DetectionHandlers
	Devices    *DeviceHandlers
	Docs       *DocHandlers
}

// NewResources creates a new Resources instance
func NewResources(h *hub.Hub, mon *monitoring.Service) *Resources {
	return &Resources{
		Status:     &StatusHandlers{hub: h, monitoring: mon},
		Detections: &DetectionHandlers{hub: h},
		Devices:    &DeviceHandlers{hub: h},
		Docs:       &DocHandlers{},
	}
}
