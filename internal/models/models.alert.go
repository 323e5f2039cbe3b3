package models

// AlertLevel is the severity of a SystemAlert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// SystemAlert is an entry of the bounded alert log.
type SystemAlert struct {
	Level        AlertLevel `json:"level"`
	Message      string     `json:"message"`
	Timestamp    int64      `json:"timestamp"`
	TimestampStr string     `json:"timestampStr"`
}
