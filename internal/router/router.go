// FilePath: internal/router/router.go
package router

import (
	"fmt"
	"strconv"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/models"
	"github.com/pcdvisual/telemetry-hub/internal/state"
)

// Router turns validated device messages into store mutations and outbound
// events. It is not safe for concurrent use; callers serialize Route calls.
type Router struct {
	store *state.Store
	now   func() time.Time

	lastReceivedAt int64
}

func New(store *state.Store, now func() time.Time) *Router {
	if now == nil {
		now = time.Now
	}
	return &Router{store: store, now: now}
}

// Route applies msg for role and returns the events to broadcast, in order.
// Messages outside the role's routing table are logged and ignored.
func (r *Router) Route(role models.Role, msg models.DeviceMessage) []models.Event {
	switch role {
	case models.RolePai:
		return r.routePai(msg)
	case models.RoleCamera:
		return r.routeCamera(msg)
	default:
		nuts.L.Warnf("[Router] Message %q from unknown role %q ignored", msg.MessageType(), role)
		return nil
	}
}

func (r *Router) routePai(msg models.DeviceMessage) []models.Event {
	now := r.now()
	switch m := msg.(type) {
	case *models.IdentifyMessage:
		nuts.L.Infof("[Router] pai identified as %s", m.DeviceID)
		r.store.UpdateModuleStatus(models.ModulePai, state.Seen(now))
		return []models.Event{r.systemAlert(models.AlertInfo, "pai connected: "+m.DeviceID, now)}
	case *models.SensorUpdateMessage:
		return r.sensorUpdate(m, now)
	case *models.StatusMessage:
		return r.moduleStatus(m, now)
	case *models.AlertMessage:
		return r.deviceAlert(m, now)
	case *models.HeartbeatMessage:
		r.store.UpdateModuleStatus(models.ModulePai, state.Seen(now))
		return nil
	default:
		nuts.L.Warnf("[Router] Unsupported pai message type %q ignored", msg.MessageType())
		return nil
	}
}

func (r *Router) routeCamera(msg models.DeviceMessage) []models.Event {
	now := r.now()
	switch m := msg.(type) {
	case *models.IdentifyMessage:
		nuts.L.Infof("[Router] camera identified as %s", m.DeviceID)
		r.store.UpdateModuleStatus(models.ModuleCamera, state.Seen(now))
		return []models.Event{r.systemAlert(models.AlertInfo, "camera connected: "+m.DeviceID, now)}
	case *models.DetectionMessage:
		return r.detection(m, now)
	case *models.HeartbeatMessage:
		r.store.UpdateModuleStatus(models.ModuleCamera, state.Seen(now))
		return nil
	default:
		nuts.L.Warnf("[Router] Unsupported camera message type %q ignored", msg.MessageType())
		return nil
	}
}

// RouteDescription handles a manually submitted detection exactly like a
// camera detection, with a server-assigned event timestamp.
func (r *Router) RouteDescription(m *models.DetectionMessage) []models.Event {
	cp := *m
	cp.Timestamp = nil
	return r.detection(&cp, r.now())
}

type sensorUpdateStream struct {
	Distance        float64  `json:"distance"`
	VibrationLevel  float64  `json:"vibrationLevel"`
	AlertLevel      string   `json:"alertLevel"`
	AlertMsg        string   `json:"alertMsg"`
	RSSI            *float64 `json:"rssi,omitempty"`
	ModuleID        *string  `json:"moduleId,omitempty"`
	Timestamp       int64    `json:"timestamp"`
	SensorTimestamp *int64   `json:"sensorTimestamp,omitempty"`
}

type sensorUpdateSocket struct {
	Distance       float64  `json:"distance"`
	VibrationLevel float64  `json:"vibrationLevel"`
	AlertLevel     string   `json:"alertLevel"`
	AlertMsg       string   `json:"alertMsg"`
	RSSI           *float64 `json:"rssi,omitempty"`
	Timestamp      int64    `json:"timestamp"`
}

func (r *Router) sensorUpdate(m *models.SensorUpdateMessage, now time.Time) []models.Event {
	seen := state.Seen(now)
	sensor := seen
	sensor.Distance = m.Distance
	sensor.Level = models.String(m.AlertLevel)
	sensor.RSSI = m.RSSI
	motor := seen
	motor.VibrationLevel = m.VibrationLevel

	r.store.UpdateModules(
		models.ModulePatch{Module: models.ModuleSensor, Patch: sensor},
		models.ModulePatch{Module: models.ModuleMotor, Patch: motor},
	)

	ts := models.MillisOf(now)
	events := []models.Event{
		{
			Name:   models.EventSensorUpdate,
			Target: models.TargetStream,
			Data: sensorUpdateStream{
				Distance:        *m.Distance,
				VibrationLevel:  *m.VibrationLevel,
				AlertLevel:      m.AlertLevel,
				AlertMsg:        *m.AlertMsg,
				RSSI:            m.RSSI,
				ModuleID:        m.ModuleID,
				Timestamp:       ts,
				SensorTimestamp: millis(m.Timestamp),
			},
		},
		{
			Name:   models.EventSensorUpdate,
			Target: models.TargetSocket,
			Data: sensorUpdateSocket{
				Distance:       *m.Distance,
				VibrationLevel: *m.VibrationLevel,
				AlertLevel:     m.AlertLevel,
				AlertMsg:       *m.AlertMsg,
				RSSI:           m.RSSI,
				Timestamp:      ts,
			},
		},
	}

	switch level := models.AlertLevel(m.AlertLevel); level {
	case models.AlertWarning, models.AlertDanger:
		msg := fmt.Sprintf("%s (%scm)", *m.AlertMsg, formatNumber(*m.Distance))
		events = append(events, r.systemAlert(level, msg, now))
	}
	return events
}

type moduleStatusEvent struct {
	Module         models.ModuleName `json:"module"`
	Connected      bool              `json:"connected"`
	Distance       *float64          `json:"distance,omitempty"`
	RSSI           *float64          `json:"rssi,omitempty"`
	VibrationLevel *float64          `json:"vibrationLevel,omitempty"`
	FrameCount     *float64          `json:"frameCount,omitempty"`
	Timestamp      int64             `json:"timestamp"`
}

func (r *Router) moduleStatus(m *models.StatusMessage, now time.Time) []models.Event {
	module := models.ModuleName(m.Module)
	patch := state.Seen(now)
	evt := moduleStatusEvent{Module: module, Connected: true, Timestamp: models.MillisOf(now)}

	switch module {
	case models.ModuleSensor:
		patch.Distance, patch.RSSI = m.Distance, m.RSSI
		evt.Distance, evt.RSSI = m.Distance, m.RSSI
	case models.ModuleMotor:
		patch.VibrationLevel = m.VibrationLevel
		evt.VibrationLevel = m.VibrationLevel
	case models.ModuleCamera:
		patch.FrameCount, patch.RSSI = m.FrameCount, m.RSSI
		evt.FrameCount, evt.RSSI = m.FrameCount, m.RSSI
	default:
		nuts.L.Warnf("[Router] Status for unknown module %q ignored", m.Module)
		return nil
	}

	r.store.UpdateModuleStatus(module, patch)
	return []models.Event{{Name: models.EventStatus, Target: models.TargetStream, Data: evt}}
}

type dangerAlert struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Distance  *float64 `json:"distance,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (r *Router) deviceAlert(m *models.AlertMessage, now time.Time) []models.Event {
	level := models.AlertLevel(m.Level)
	events := []models.Event{r.systemAlert(level, *m.Msg, now)}
	if level == models.AlertDanger {
		events = append(events, models.Event{
			Name:   models.EventAlert,
			Target: models.TargetStream,
			Data: dangerAlert{
				Type:      string(models.AlertDanger),
				Message:   *m.Msg,
				Distance:  m.Distance,
				Timestamp: models.MillisOf(now),
			},
		})
	}
	return events
}

// DetectionSummary is the push-stream payload of a detection.
type DetectionSummary struct {
	Description          string   `json:"description"`
	DescriptionSecondary string   `json:"description_kz"`
	Objects              []string `json:"objects"`
	Confidence           *float64 `json:"confidence,omitempty"`
	Count                int      `json:"count"`
	Timestamp            int64    `json:"timestamp"`
}

func (r *Router) detection(m *models.DetectionMessage, now time.Time) []models.Event {
	receivedAt := r.nextReceivedAt(now)

	d := models.Detection{
		Description:          m.DescriptionPrimary,
		DescriptionSecondary: m.DescriptionPrimary,
		Objects:              append([]string{}, m.Objects...),
		Confidence:           m.Confidence,
		Timestamp:            receivedAt,
		ReceivedAt:           receivedAt,
	}
	if m.DescriptionSecondary != nil && *m.DescriptionSecondary != "" {
		d.DescriptionSecondary = *m.DescriptionSecondary
	}
	if ts := millis(m.Timestamp); ts != nil && *ts != 0 {
		d.Timestamp = *ts
	}

	r.store.AppendDetection(d)
	r.store.UpdateModuleStatus(models.ModuleCamera, state.Seen(now))

	return []models.Event{
		{Name: models.EventDetection, Target: models.TargetStream, Data: Summarize(d)},
		{Name: models.EventDetection, Target: models.TargetSocket, Data: d},
	}
}

// Summarize builds the push-stream payload for d.
func Summarize(d models.Detection) DetectionSummary {
	return DetectionSummary{
		Description:          d.Description,
		DescriptionSecondary: d.DescriptionSecondary,
		Objects:              d.Objects,
		Confidence:           d.Confidence,
		Count:                len(d.Objects),
		Timestamp:            d.Timestamp,
	}
}

// nextReceivedAt keeps receivedAt strictly increasing so replayed payloads
// stay distinguishable.
func (r *Router) nextReceivedAt(now time.Time) int64 {
	ms := models.MillisOf(now)
	if ms <= r.lastReceivedAt {
		ms = r.lastReceivedAt + 1
	}
	r.lastReceivedAt = ms
	return ms
}

func (r *Router) systemAlert(level models.AlertLevel, message string, now time.Time) models.Event {
	alert := models.SystemAlert{
		Level:        level,
		Message:      message,
		Timestamp:    models.MillisOf(now),
		TimestampStr: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	r.store.AppendAlert(alert)
	return models.Event{Name: models.EventSystemAlert, Target: models.TargetStream, Data: alert}
}

// DeviceConnected marks the modules owned by role as connected.
func (r *Router) DeviceConnected(role models.Role) {
	switch role {
	case models.RolePai:
		r.store.UpdateModuleStatus(models.ModulePai, state.Seen(r.now()))
	case models.RoleCamera:
		r.store.UpdateModuleStatus(models.ModuleCamera, state.Seen(r.now()))
	}
}

// DeviceDisconnected marks every module tied to role as disconnected.
func (r *Router) DeviceDisconnected(role models.Role) {
	modules := models.ModulesForRole(role)
	patches := make([]models.ModulePatch, 0, len(modules))
	for _, m := range modules {
		patches = append(patches, models.ModulePatch{Module: m, Patch: models.StatusPatch{Connected: models.Bool(false)}})
	}
	r.store.UpdateModules(patches...)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// millis truncates a device supplied epoch timestamp to whole milliseconds.
func millis(v *float64) *int64 {
	if v == nil {
		return nil
	}
	ms := int64(*v)
	return &ms
}
