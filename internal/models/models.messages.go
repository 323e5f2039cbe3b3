// FilePath: internal/models/models.messages.go
package models

// DeviceMessage is the closed set of validated inbound device messages.
// Each role accepts a subset; see the validator package.
type DeviceMessage interface {
	MessageType() string
}

const (
	TypeIdentify     = "identify"
	TypeSensorUpdate = "sensor_update"
	TypeStatus       = "status"
	TypeAlert        = "alert"
	TypeHeartbeat    = "heartbeat"
	TypeDetection    = "detection"
)

type IdentifyMessage struct {
	DeviceID string `json:"deviceId" validate:"required"`
}

func (IdentifyMessage) MessageType() string { return TypeIdentify }

type SensorUpdateMessage struct {
	Distance       *float64 `json:"distance" validate:"required,gte=0"`
	VibrationLevel *float64 `json:"vibrationLevel" validate:"required,gte=0"`
	AlertLevel     string   `json:"alertLevel" validate:"required,oneof=ok warning danger"`
	AlertMsg       *string  `json:"alertMsg" validate:"required"`
	ModuleID       *string  `json:"moduleId,omitempty"`
	RSSI           *float64 `json:"rssi,omitempty"`
	Timestamp      *float64 `json:"timestamp,omitempty"`
}

func (SensorUpdateMessage) MessageType() string { return TypeSensorUpdate }

type StatusMessage struct {
	Module         string   `json:"module" validate:"required,oneof=sensor motor camera"`
	Distance       *float64 `json:"distance,omitempty"`
	RSSI           *float64 `json:"rssi,omitempty"`
	VibrationLevel *float64 `json:"vibrationLevel,omitempty"`
	FrameCount     *float64 `json:"frameCount,omitempty"`
}

func (StatusMessage) MessageType() string { return TypeStatus }

type AlertMessage struct {
	Level    string   `json:"level" validate:"required,oneof=info warning danger"`
	Msg      *string  `json:"msg" validate:"required"`
	Distance *float64 `json:"distance,omitempty"`
}

func (AlertMessage) MessageType() string { return TypeAlert }

type HeartbeatMessage struct{}

func (HeartbeatMessage) MessageType() string { return TypeHeartbeat }

// DetectionMessage carries a camera detection. Field names follow the
// camera firmware.
type DetectionMessage struct {
	DescriptionPrimary   string   `json:"description_pt" validate:"required,min=1"`
	DescriptionSecondary *string  `json:"description_kz,omitempty"`
	Objects              []string `json:"objects,omitempty"`
	Confidence           *float64 `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Timestamp            *float64 `json:"timestamp,omitempty"`
}

func (DetectionMessage) MessageType() string { return TypeDetection }

// Ack is returned to a device for every accepted message.
type Ack struct {
	Status     string `json:"status"`
	ReceivedAt int64  `json:"receivedAt"`
}

// ErrorFrame is returned to a device for every rejected message.
type ErrorFrame struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
