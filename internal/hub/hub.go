// FilePath: internal/hub/hub.go
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/broadcast"
	"github.com/pcdvisual/telemetry-hub/internal/events"
	"github.com/pcdvisual/telemetry-hub/internal/models"
	"github.com/pcdvisual/telemetry-hub/internal/router"
	"github.com/pcdvisual/telemetry-hub/internal/state"
	"github.com/pcdvisual/telemetry-hub/internal/validator"
)

// ErrNotConnected is returned when a command targets a role without an
// active device connection.
var ErrNotConnected = errors.New("device not connected")

// Config holds the hub's tunables.
type Config struct {
	Caps               state.Caps
	SocketHistorySlice int
	Commands           []string
	Version            string
}

// Option customizes a Hub.
type Option func(*Hub)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithBus attaches a lifecycle event bus.
func WithBus(bus *events.Bus) Option {
	return func(h *Hub) { h.bus = bus }
}

// Hub serializes validate, route and broadcast for every inbound message and
// manages device and subscriber lifecycles.
type Hub struct {
	// mu guards the route and broadcast decision. Store reads outside it
	// are consistent per call.
	mu sync.Mutex

	cfg         Config
	now         func() time.Time
	started     time.Time
	store       *state.Store
	router      *router.Router
	validator   *validator.Validator
	broadcaster *broadcast.Broadcaster
	bus         *events.Bus
}

func New(cfg Config, opts ...Option) *Hub {
	if cfg.SocketHistorySlice <= 0 {
		cfg.SocketHistorySlice = 10
	}

	h := &Hub{
		cfg:         cfg,
		now:         time.Now,
		validator:   validator.New(),
		broadcaster: broadcast.New(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.started = h.now()
	h.store = state.NewStore(cfg.Caps)
	h.router = router.New(h.store, h.now)
	return h
}

// Store exposes the state store for read access.
func (h *Hub) Store() *state.Store { return h.store }

// AddSink mirrors every broadcast event to s.
func (h *Hub) AddSink(s broadcast.Sink) { h.broadcaster.AddSink(s) }

// ConnectDevice makes conn the active connection for role. A displaced
// connection is closed.
func (h *Hub) ConnectDevice(role models.Role, conn models.DeviceConnection) {
	h.mu.Lock()
	prev := h.store.SetDeviceConnection(role, conn)
	h.router.DeviceConnected(role)
	h.mu.Unlock()

	labels := map[string]string{"role": string(role)}
	nuts.L.Infof("[Hub] Device %s connected as %s", conn.ID(), role)
	h.bus.Emit(events.DeviceConnected, conn.ID(), labels)

	if prev != nil && prev != conn {
		nuts.L.Warnf("[Hub] Device %s replaced %s for role %s", conn.ID(), prev.ID(), role)
		if err := prev.Close(); err != nil {
			nuts.L.Warnf("[Hub] Failed to close replaced device %s: %v", prev.ID(), err)
		}
		h.bus.Emit(events.DeviceReplaced, prev.ID(), labels)
	}
}

// DisconnectDevice releases role if conn still holds it and marks the
// role's modules disconnected. A connection that was already replaced
// changes nothing.
func (h *Hub) DisconnectDevice(role models.Role, conn models.DeviceConnection) {
	h.mu.Lock()
	released := h.store.ReleaseDeviceConnection(role, conn)
	if released {
		h.router.DeviceDisconnected(role)
	}
	h.mu.Unlock()

	if !released {
		nuts.L.Infof("[Hub] Stale device %s closed for role %s", conn.ID(), role)
		return
	}
	nuts.L.Infof("[Hub] Device %s disconnected from role %s", conn.ID(), role)
	h.bus.Emit(events.DeviceDisconnected, conn.ID(), map[string]string{"role": string(role)})
}

// HandleDeviceMessage validates raw for role, routes it and broadcasts the
// derived events. Rejected payloads leave all state untouched and return a
// *validator.ValidationError.
func (h *Hub) HandleDeviceMessage(role models.Role, raw []byte) (models.Ack, error) {
	msg, err := h.validator.ParseDeviceMessage(role, raw)
	if err != nil {
		nuts.L.Warnf("[Hub] Rejected %s payload: %v", role, err)
		h.bus.Emit(events.MessageRejected, string(role), map[string]string{"role": string(role)})
		return models.Ack{}, err
	}

	h.mu.Lock()
	evts := h.router.Route(role, msg)
	h.broadcaster.Broadcast(evts...)
	h.mu.Unlock()

	return models.Ack{Status: "ok", ReceivedAt: models.MillisOf(h.now())}, nil
}

// SubmitDescription records a manually submitted detection description.
func (h *Hub) SubmitDescription(raw []byte) error {
	msg, err := h.validator.ParseDescription(raw)
	if err != nil {
		return err
	}

	h.mu.Lock()
	evts := h.router.RouteDescription(msg)
	h.broadcaster.Broadcast(evts...)
	h.mu.Unlock()
	return nil
}

// RejectionFrame converts a HandleDeviceMessage error into the frame sent
// back to the device.
func RejectionFrame(role models.Role, err error) models.ErrorFrame {
	frame := models.ErrorFrame{
		Type:    models.FrameError,
		Message: fmt.Sprintf("invalid payload from %s", role),
	}
	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		frame.Details = ve.Issues
	} else if err != nil {
		frame.Details = err.Error()
	}
	return frame
}

// JoinSocket seeds s with the recent history and the latest detection, then
// registers it. No live event can interleave with the seed frames.
func (h *Hub) JoinSocket(s broadcast.Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := broadcast.Send(s, models.EventHistory, h.store.RecentHistory(h.cfg.SocketHistorySlice)); err != nil {
		return fmt.Errorf("failed to send history: %w", err)
	}
	if latest, ok := h.store.LatestDetection(); ok {
		if err := broadcast.Send(s, models.EventCurrent, latest); err != nil {
			return fmt.Errorf("failed to send current detection: %w", err)
		}
	}
	h.broadcaster.Add(s)

	h.bus.Emit(events.SubscriberJoined, s.ID(), map[string]string{"kind": string(s.Kind())})
	return nil
}

type connectedPayload struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// JoinStream seeds s with the connected event, all module statuses and the
// latest detection, then registers it.
func (h *Hub) JoinStream(s broadcast.Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	hello := connectedPayload{Message: "Connected to event stream", Timestamp: models.MillisOf(h.now())}
	if err := broadcast.Send(s, models.EventConnected, hello); err != nil {
		return fmt.Errorf("failed to send connected event: %w", err)
	}
	if err := broadcast.Send(s, models.EventStatusAll, h.store.ModuleStatuses()); err != nil {
		return fmt.Errorf("failed to send module statuses: %w", err)
	}
	if latest, ok := h.store.LatestDetection(); ok {
		if err := broadcast.Send(s, models.EventDetection, router.Summarize(latest)); err != nil {
			return fmt.Errorf("failed to send latest detection: %w", err)
		}
	}
	h.broadcaster.Add(s)

	h.bus.Emit(events.SubscriberJoined, s.ID(), map[string]string{"kind": string(s.Kind())})
	return nil
}

// Leave deregisters the subscriber with id.
func (h *Hub) Leave(id string) {
	if h.broadcaster.Remove(id) {
		h.bus.Emit(events.SubscriberLeft, id, nil)
	}
}

type testRequest struct {
	Type string `json:"type"`
	Data struct {
		Text string `json:"text"`
	} `json:"data"`
}

type transcription struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

// HandleSocketMessage processes inbound chatter from a socket subscriber.
// Only test messages get a reply.
func (h *Hub) HandleSocketMessage(s broadcast.Subscriber, raw []byte) {
	var req testRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Type != models.FrameTest {
		nuts.L.Infof("[Hub] Socket subscriber %s sent: %s", s.ID(), truncate(raw, 256))
		return
	}

	reply := models.SocketEnvelope{
		Type:      models.EventTranscription,
		Data:      transcription{Text: fmt.Sprintf("Test received: \"%s\"", req.Data.Text), Status: "processed"},
		Timestamp: models.MillisOf(h.now()),
	}
	frame, err := json.Marshal(reply)
	if err != nil {
		nuts.L.Errorf("[Hub] Failed to encode test reply: %v", err)
		return
	}
	if err := s.Enqueue(frame); err != nil {
		nuts.L.Warnf("[Hub] Failed to reply to socket subscriber %s: %v", s.ID(), err)
	}
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}

// SendCommand validates a command request and forwards it to the pai
// device. It returns ErrNotConnected when no pai device is active.
func (h *Hub) SendCommand(raw []byte) (models.DeviceCommand, error) {
	req, err := h.validator.ParseCommandRequest(raw, h.cfg.Commands)
	if err != nil {
		return models.DeviceCommand{}, err
	}

	cmd := models.DeviceCommand{
		Type:      models.FrameCommand,
		Command:   req.Command,
		Value:     req.Value,
		Timestamp: models.MillisOf(h.now()),
	}

	conn, ok := h.store.DeviceConnection(models.RolePai)
	if !ok {
		return cmd, ErrNotConnected
	}
	if err := conn.Send(cmd); err != nil {
		nuts.L.Errorf("[Hub] Failed to send command %s to %s: %v", cmd.Command, conn.ID(), err)
		return cmd, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	nuts.L.Infof("[Hub] Command %s sent to %s", cmd.Command, conn.ID())
	return cmd, nil
}

// Status returns the status summary.
func (h *Hub) Status() models.StatusSummary {
	now := h.now()
	socket, stream := h.broadcaster.Counts()

	summary := models.StatusSummary{
		Status:          "online",
		Uptime:          int64(now.Sub(h.started) / time.Second),
		ServerStartTime: models.MillisOf(h.started),
		Modules:         h.store.ModuleStatuses(),
		TotalDetections: h.store.HistoryCount(),
		ConnectedClients: models.ConnectedClients{
			App:       socket,
			DevicePai: h.deviceCount(models.RolePai),
			DeviceCam: h.deviceCount(models.RoleCamera),
		},
		StreamClients: stream,
		Version:       h.cfg.Version,
	}
	if latest, ok := h.store.LatestDetection(); ok {
		summary.LastDetection = &latest
		summary.CurrentObjects = len(latest.Objects)
	}
	return summary
}

func (h *Hub) deviceCount(role models.Role) int {
	if _, ok := h.store.DeviceConnection(role); ok {
		return 1
	}
	return 0
}

// History returns up to limit history entries, most recent first.
func (h *Hub) History(limit int) models.HistoryPage {
	all := h.store.History()
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]models.Detection, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return models.HistoryPage{Total: len(all), Returned: len(out), Detections: out}
}

// NoDetectionDescription is reported by Current before any detection.
const NoDetectionDescription = "Nenhuma detecção recente"

// Current returns the latest detection read model.
func (h *Hub) Current() models.CurrentDetection {
	latest, ok := h.store.LatestDetection()
	if !ok {
		return models.CurrentDetection{
			Description: NoDetectionDescription,
			Objects:     []string{},
			Timestamp:   h.now().UTC().Format(time.RFC3339Nano),
		}
	}
	ago := (models.MillisOf(h.now()) - latest.ReceivedAt) / 1000
	return models.CurrentDetection{
		Detecting:            true,
		Count:                len(latest.Objects),
		Description:          latest.Description,
		DescriptionSecondary: latest.DescriptionSecondary,
		Objects:              latest.Objects,
		Confidence:           latest.Confidence,
		Timestamp:            time.UnixMilli(latest.Timestamp).UTC().Format(time.RFC3339Nano),
		SecondsAgo:           &ago,
	}
}

// Counts returns the number of socket and stream subscribers.
func (h *Hub) Counts() (socket, stream int) {
	return h.broadcaster.Counts()
}

// CloseDevices closes every active device connection.
func (h *Hub) CloseDevices() {
	for _, role := range []models.Role{models.RolePai, models.RoleCamera} {
		if conn, ok := h.store.DeviceConnection(role); ok {
			if err := conn.Close(); err != nil {
				nuts.L.Warnf("[Hub] Failed to close device %s: %v", conn.ID(), err)
			}
		}
	}
}
