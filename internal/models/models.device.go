// FilePath: internal/models/models.device.go
package models

import "time"

// Role identifies a device connection slot. Each role has at most one
// active connection.
type Role string

const (
	RolePai    Role = "pai"
	RoleCamera Role = "camera"
)

// ModuleName identifies one of the independently tracked modules.
type ModuleName string

const (
	ModulePai    ModuleName = "pai"
	ModuleSensor ModuleName = "sensor"
	ModuleMotor  ModuleName = "motor"
	ModuleCamera ModuleName = "camera"
)

// ModulesForRole returns the modules whose liveness is tied to a device role.
func ModulesForRole(role Role) []ModuleName {
	switch role {
	case RolePai:
		return []ModuleName{ModulePai, ModuleSensor, ModuleMotor}
	case RoleCamera:
		return []ModuleName{ModuleCamera}
	default:
		return nil
	}
}

// ModuleStatus is the liveness record and last-known telemetry of a module.
// Telemetry fields that do not apply to a module stay nil.
type ModuleStatus struct {
	Connected      bool       `json:"connected"`
	LastSeen       *time.Time `json:"lastSeen"`
	Distance       *float64   `json:"distance,omitempty"`
	Level          *string    `json:"level,omitempty"`
	RSSI           *float64   `json:"rssi,omitempty"`
	VibrationLevel *float64   `json:"vibrationLevel,omitempty"`
	FrameCount     *float64   `json:"frameCount,omitempty"`
}

// ModuleStatuses is the snapshot of all four modules.
type ModuleStatuses struct {
	Pai    ModuleStatus `json:"pai"`
	Sensor ModuleStatus `json:"sensor"`
	Motor  ModuleStatus `json:"motor"`
	Camera ModuleStatus `json:"camera"`
}

// StatusPatch describes a partial update of a ModuleStatus. Nil fields are
// left untouched.
type StatusPatch struct {
	Connected      *bool
	SeenAt         *time.Time
	Distance       *float64
	Level          *string
	RSSI           *float64
	VibrationLevel *float64
	FrameCount     *float64
}

// ModulePatch binds a StatusPatch to the module it applies to.
type ModulePatch struct {
	Module ModuleName
	Patch  StatusPatch
}

// DeviceConnection is an active device-facing connection handle.
type DeviceConnection interface {
	ID() string
	Send(v interface{}) error
	Close() error
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// String returns a pointer to s.
func String(s string) *string { return &s }
