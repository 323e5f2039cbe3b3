package models

// Target is a bitmask of subscriber transports an event is delivered to.
type Target uint8

const (
	TargetStream Target = 1 << iota
	TargetSocket
)

// Has reports whether t includes o.
func (t Target) Has(o Target) bool { return t&o != 0 }

func (t Target) String() string {
	switch t {
	case TargetStream:
		return "stream"
	case TargetSocket:
		return "socket"
	case TargetStream | TargetSocket:
		return "all"
	default:
		return "none"
	}
}

// Outbound event names.
const (
	EventConnected     = "connected"
	EventStatusAll     = "esp32-status-all"
	EventStatus        = "esp32-status"
	EventSensorUpdate  = "sensor-update"
	EventSystemAlert   = "system-alert"
	EventAlert         = "alert"
	EventDetection     = "detection"
	EventPing          = "ping"
	EventHistory       = "history"
	EventCurrent       = "current"
	EventTranscription = "transcription"
)

// Frame types outside the event stream.
const (
	FrameError   = "error"
	FrameCommand = "command"
	FrameTest    = "test"
)

// Event is a derived outbound event. Name is the push-stream event name and
// the socket envelope type.
type Event struct {
	Name   string
	Target Target
	Data   interface{}
}

// SocketEnvelope is the frame shape delivered to socket subscribers.
type SocketEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// SubscriberKind distinguishes the two subscriber transports.
type SubscriberKind string

const (
	SubscriberSocket SubscriberKind = "socket"
	SubscriberStream SubscriberKind = "stream"
)

// Target returns the delivery target matching the subscriber kind.
func (k SubscriberKind) Target() Target {
	if k == SubscriberSocket {
		return TargetSocket
	}
	return TargetStream
}
