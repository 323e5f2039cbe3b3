// FilePath: internal/models/models.api.go
package models

// CommandRequest is the body of a device command request.
type CommandRequest struct {
	Command string      `json:"command" validate:"required"`
	Value   interface{} `json:"value,omitempty"`
}

// DeviceCommand is the frame forwarded to the pai device.
type DeviceCommand struct {
	Type      string      `json:"type"`
	Command   string      `json:"command"`
	Value     interface{} `json:"value,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ConnectedClients counts active connections per kind.
type ConnectedClients struct {
	App       int `json:"app"`
	DevicePai int `json:"esp32Pai"`
	DeviceCam int `json:"esp32Cam"`
}

// StatusSummary is served by the status endpoint.
type StatusSummary struct {
	Status           string           `json:"status"`
	Uptime           int64            `json:"uptime"`
	ServerStartTime  int64            `json:"serverStartTime"`
	Modules          ModuleStatuses   `json:"esp32Status"`
	TotalDetections  int              `json:"totalDetections"`
	ConnectedClients ConnectedClients `json:"connectedClients"`
	StreamClients    int              `json:"sseClients"`
	LastDetection    *Detection       `json:"lastDetection"`
	CurrentObjects   int              `json:"currentObjects"`
	Version          string           `json:"version"`
}
