package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdvisual/telemetry-hub/internal/events"
	"github.com/pcdvisual/telemetry-hub/internal/models"
	"github.com/pcdvisual/telemetry-hub/internal/state"
	"github.com/pcdvisual/telemetry-hub/internal/validator"
)

type fakeSubscriber struct {
	id   string
	kind models.SubscriberKind

	mu     sync.Mutex
	frames []string
}

func (f *fakeSubscriber) ID() string                  { return f.id }
func (f *fakeSubscriber) Kind() models.SubscriberKind { return f.kind }

func (f *fakeSubscriber) Enqueue(frame []byte) error {
	f.mu.Lock()
	f.frames = append(f.frames, string(frame))
	f.mu.Unlock()
	return nil
}

func (f *fakeSubscriber) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

// streamEvents splits recorded SSE frames into event names and data.
func (f *fakeSubscriber) streamEvents(t *testing.T) ([]string, []string) {
	t.Helper()
	var names, data []string
	for _, frame := range f.got() {
		lines := strings.Split(strings.TrimSuffix(frame, "\n\n"), "\n")
		require.Len(t, lines, 2)
		names = append(names, strings.TrimPrefix(lines[0], "event: "))
		data = append(data, strings.TrimPrefix(lines[1], "data: "))
	}
	return names, data
}

type socketFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (f *fakeSubscriber) socketFrames(t *testing.T) []socketFrame {
	t.Helper()
	var out []socketFrame
	for _, frame := range f.got() {
		var sf socketFrame
		require.NoError(t, json.Unmarshal([]byte(frame), &sf))
		out = append(out, sf)
	}
	return out
}

type fakeDevice struct {
	id      string
	sendErr error

	mu     sync.Mutex
	sent   []interface{}
	closed bool
}

func (d *fakeDevice) ID() string { return d.id }

func (d *fakeDevice) Send(v interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, v)
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func newHub() *Hub {
	return New(Config{
		Caps:               state.DefaultCaps(),
		SocketHistorySlice: 10,
		Commands:           []string{"test_motor", "get_status", "calibrate_sensor", "reboot", "set_vibration"},
		Version:            "test",
	})
}

func mustHandle(t *testing.T, h *Hub, role models.Role, raw string) models.Ack {
	t.Helper()
	ack, err := h.HandleDeviceMessage(role, []byte(raw))
	require.NoError(t, err)
	return ack
}

func TestHandleDeviceMessage_Ack(t *testing.T) {
	h := newHub()
	ack := mustHandle(t, h, models.RolePai, `{"type":"heartbeat"}`)
	assert.Equal(t, "ok", ack.Status)
	assert.NotZero(t, ack.ReceivedAt)
}

func TestHandleDeviceMessage_BogusTypeLeavesStateUnchanged(t *testing.T) {
	h := newHub()
	mustHandle(t, h, models.RolePai, `{"type":"sensor_update","distance":20,"vibrationLevel":5,"alertLevel":"ok","alertMsg":""}`)
	mustHandle(t, h, models.RoleCamera, `{"type":"identify","deviceId":"CAM"}`)

	before, err := json.Marshal(h.Store().ModuleStatuses())
	require.NoError(t, err)
	alertsBefore := h.Store().Alerts()

	for _, role := range []models.Role{models.RolePai, models.RoleCamera} {
		_, err := h.HandleDeviceMessage(role, []byte(`{"type":"bogus"}`))
		require.Error(t, err)
		assert.True(t, validator.IsValidationError(err))

		frame := RejectionFrame(role, err)
		assert.Equal(t, "error", frame.Type)
		assert.NotEmpty(t, frame.Message)
		assert.NotNil(t, frame.Details)
	}
	_, err = h.HandleDeviceMessage(models.RolePai, []byte(`not json`))
	require.Error(t, err)

	after, err := json.Marshal(h.Store().ModuleStatuses())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, alertsBefore, h.Store().Alerts())
}

func TestDangerEscalation_ObservedByStreamSubscriber(t *testing.T) {
	h := newHub()
	sub := &fakeSubscriber{id: "sse-1", kind: models.SubscriberStream}
	require.NoError(t, h.JoinStream(sub))

	mustHandle(t, h, models.RolePai, `{"type":"sensor_update","distance":12,"vibrationLevel":90,"alertLevel":"danger","alertMsg":"too close"}`)

	names, data := sub.streamEvents(t)
	require.Equal(t, []string{"connected", "esp32-status-all", "sensor-update", "system-alert"}, names)
	assert.Contains(t, data[3], `"level":"danger"`)
	assert.Contains(t, data[3], `"message":"too close (12cm)"`)

	alerts := h.Store().Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertDanger, alerts[0].Level)
}

func TestEndToEndScenario(t *testing.T) {
	h := newHub()
	sub := &fakeSubscriber{id: "sse-1", kind: models.SubscriberStream}
	require.NoError(t, h.JoinStream(sub))

	pai := &fakeDevice{id: "dev-pai"}
	h.ConnectDevice(models.RolePai, pai)
	mustHandle(t, h, models.RolePai, `{"type":"identify","deviceId":"M1"}`)
	mustHandle(t, h, models.RolePai, `{"type":"sensor_update","distance":15,"vibrationLevel":80,"alertLevel":"danger","alertMsg":"obstacle"}`)

	st := h.Store().ModuleStatuses()
	assert.True(t, st.Sensor.Connected)
	assert.Equal(t, 15.0, *st.Sensor.Distance)

	var danger []models.SystemAlert
	for _, a := range h.Store().Alerts() {
		if a.Level == models.AlertDanger {
			danger = append(danger, a)
		}
	}
	require.Len(t, danger, 1)

	names, data := sub.streamEvents(t)
	require.Equal(t, []string{"connected", "esp32-status-all", "system-alert", "sensor-update", "system-alert"}, names)
	assert.Contains(t, data[2], `"message":"pai connected: M1"`)
	assert.Contains(t, data[3], `"distance":15`)
	assert.Contains(t, data[4], `"level":"danger"`)
	assert.Contains(t, data[4], `"message":"obstacle (15cm)"`)
}

func TestJoinSocket_SnapshotOrder(t *testing.T) {
	h := newHub()
	for _, desc := range []string{"d1", "d2", "d3"} {
		mustHandle(t, h, models.RoleCamera, fmt.Sprintf(`{"type":"detection","description_pt":%q}`, desc))
	}

	sub := &fakeSubscriber{id: "ws-1", kind: models.SubscriberSocket}
	require.NoError(t, h.JoinSocket(sub))

	frames := sub.socketFrames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, "history", frames[0].Type)
	assert.Equal(t, "current", frames[1].Type)

	var history []models.Detection
	require.NoError(t, json.Unmarshal(frames[0].Data, &history))
	require.Len(t, history, 3)
	assert.Equal(t, []string{"d1", "d2", "d3"}, []string{history[0].Description, history[1].Description, history[2].Description})

	var current models.Detection
	require.NoError(t, json.Unmarshal(frames[1].Data, &current))
	assert.Equal(t, history[2], current)
}

func TestJoinSocket_SnapshotNotReorderedByConcurrentEvents(t *testing.T) {
	h := newHub()
	mustHandle(t, h, models.RoleCamera, `{"type":"detection","description_pt":"seed"}`)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = h.HandleDeviceMessage(models.RoleCamera, []byte(fmt.Sprintf(`{"type":"detection","description_pt":"live-%d"}`, i)))
		}
	}()

	sub := &fakeSubscriber{id: "ws-1", kind: models.SubscriberSocket}
	require.NoError(t, h.JoinSocket(sub))
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	frames := sub.socketFrames(t)
	require.GreaterOrEqual(t, len(frames), 2)
	assert.Equal(t, "history", frames[0].Type)
	assert.Equal(t, "current", frames[1].Type)

	var history []models.Detection
	require.NoError(t, json.Unmarshal(frames[0].Data, &history))
	var current models.Detection
	require.NoError(t, json.Unmarshal(frames[1].Data, &current))
	assert.Equal(t, history[len(history)-1], current)

	last := current.ReceivedAt
	for _, f := range frames[2:] {
		assert.Equal(t, "detection", f.Type)
		var d models.Detection
		require.NoError(t, json.Unmarshal(f.Data, &d))
		assert.Greater(t, d.ReceivedAt, last)
		last = d.ReceivedAt
	}
}

func TestJoinStream_SendsLatestDetection(t *testing.T) {
	h := newHub()
	mustHandle(t, h, models.RoleCamera, `{"type":"detection","description_pt":"gato","objects":["cat"]}`)

	sub := &fakeSubscriber{id: "sse-1", kind: models.SubscriberStream}
	require.NoError(t, h.JoinStream(sub))

	names, data := sub.streamEvents(t)
	require.Equal(t, []string{"connected", "esp32-status-all", "detection"}, names)
	assert.Contains(t, data[1], `"camera":{"connected":true`)
	assert.Contains(t, data[2], `"count":1`)
}

func TestDeviceLifecycle_RoleScopedDisconnect(t *testing.T) {
	h := newHub()
	pai := &fakeDevice{id: "dev-pai"}
	cam := &fakeDevice{id: "dev-cam"}
	h.ConnectDevice(models.RolePai, pai)
	h.ConnectDevice(models.RoleCamera, cam)
	mustHandle(t, h, models.RolePai, `{"type":"sensor_update","distance":1,"vibrationLevel":1,"alertLevel":"ok","alertMsg":""}`)

	st := h.Store().ModuleStatuses()
	require.True(t, st.Sensor.Connected && st.Motor.Connected && st.Camera.Connected && st.Pai.Connected)

	h.DisconnectDevice(models.RolePai, pai)
	st = h.Store().ModuleStatuses()
	assert.False(t, st.Pai.Connected)
	assert.False(t, st.Sensor.Connected)
	assert.False(t, st.Motor.Connected)
	assert.True(t, st.Camera.Connected)

	h.ConnectDevice(models.RolePai, pai)
	h.DisconnectDevice(models.RoleCamera, cam)
	st = h.Store().ModuleStatuses()
	assert.False(t, st.Camera.Connected)
	assert.True(t, st.Pai.Connected)
}

func TestDeviceLifecycle_ReplacementClosesPrevious(t *testing.T) {
	bus := events.NewBus()
	var mu sync.Mutex
	replaced := []string{}
	require.NoError(t, bus.On(events.DeviceReplaced, "test", func(id string, _ map[string]string) {
		mu.Lock()
		replaced = append(replaced, id)
		mu.Unlock()
	}))

	h := New(Config{}, WithBus(bus))
	first := &fakeDevice{id: "dev-1"}
	second := &fakeDevice{id: "dev-2"}

	h.ConnectDevice(models.RoleCamera, first)
	h.ConnectDevice(models.RoleCamera, second)
	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	h.DisconnectDevice(models.RoleCamera, first)
	assert.True(t, h.Store().ModuleStatuses().Camera.Connected)
	cur, ok := h.Store().DeviceConnection(models.RoleCamera)
	require.True(t, ok)
	assert.Equal(t, "dev-2", cur.ID())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replaced) == 1 && replaced[0] == "dev-1"
	}, time.Second, 5*time.Millisecond)
}

func TestSendCommand(t *testing.T) {
	h := newHub()

	_, err := h.SendCommand([]byte(`{"command":"test_motor"}`))
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = h.SendCommand([]byte(`{"command":"explode"}`))
	assert.True(t, validator.IsValidationError(err))

	pai := &fakeDevice{id: "dev-pai"}
	h.ConnectDevice(models.RolePai, pai)
	cmd, err := h.SendCommand([]byte(`{"command":"set_vibration","value":200}`))
	require.NoError(t, err)
	assert.Equal(t, "command", cmd.Type)
	require.Len(t, pai.sent, 1)
	assert.Equal(t, cmd, pai.sent[0])

	h.ConnectDevice(models.RolePai, &fakeDevice{id: "dev-broken", sendErr: errors.New("broken pipe")})
	_, err = h.SendCommand([]byte(`{"command":"reboot"}`))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestHistoryAndCurrent(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	h := New(Config{}, WithClock(func() time.Time { return now }))

	current := h.Current()
	assert.False(t, current.Detecting)
	assert.Equal(t, 0, current.Count)
	assert.NotNil(t, current.Objects)
	assert.Equal(t, NoDetectionDescription, current.Description)
	assert.Equal(t, "2023-11-14T22:13:20Z", current.Timestamp)
	assert.Nil(t, current.SecondsAgo)

	for i := 1; i <= 5; i++ {
		mustHandle(t, h, models.RoleCamera, fmt.Sprintf(`{"type":"detection","description_pt":"d%d","objects":["a","b"]}`, i))
	}

	page := h.History(3)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Returned)
	assert.Equal(t, "d5", page.Detections[0].Description)
	assert.Equal(t, "d3", page.Detections[2].Description)
	assert.Equal(t, 5, h.History(0).Returned)

	now = now.Add(10 * time.Second)
	current = h.Current()
	assert.True(t, current.Detecting)
	assert.Equal(t, 2, current.Count)
	assert.Equal(t, "d5", current.Description)
	require.NotNil(t, current.SecondsAgo)
	assert.Equal(t, int64(9), *current.SecondsAgo)
}

func TestStatus(t *testing.T) {
	h := newHub()
	require.NoError(t, h.JoinSocket(&fakeSubscriber{id: "ws-1", kind: models.SubscriberSocket}))
	require.NoError(t, h.JoinStream(&fakeSubscriber{id: "sse-1", kind: models.SubscriberStream}))
	h.ConnectDevice(models.RoleCamera, &fakeDevice{id: "dev-cam"})

	s := h.Status()
	assert.Equal(t, "online", s.Status)
	assert.Equal(t, 1, s.ConnectedClients.App)
	assert.Equal(t, 0, s.ConnectedClients.DevicePai)
	assert.Equal(t, 1, s.ConnectedClients.DeviceCam)
	assert.Equal(t, 1, s.StreamClients)
	assert.Nil(t, s.LastDetection)
	assert.Equal(t, 0, s.CurrentObjects)
	assert.Equal(t, "test", s.Version)

	mustHandle(t, h, models.RoleCamera, `{"type":"detection","description_pt":"d1","objects":["a","b","a"]}`)
	s = h.Status()
	require.NotNil(t, s.LastDetection)
	assert.Equal(t, 3, s.CurrentObjects)

	h.Leave("ws-1")
	h.Leave("ws-1")
	assert.Equal(t, 0, h.Status().ConnectedClients.App)
}

func TestHandleSocketMessage_TestEcho(t *testing.T) {
	h := newHub()
	sub := &fakeSubscriber{id: "ws-1", kind: models.SubscriberSocket}

	h.HandleSocketMessage(sub, []byte(`hello`))
	h.HandleSocketMessage(sub, []byte(`{"type":"chat","data":{"text":"hi"}}`))
	assert.Empty(t, sub.got())

	h.HandleSocketMessage(sub, []byte(`{"type":"test","data":{"text":"ping"}}`))
	frames := sub.got()
	require.Len(t, frames, 1)

	var reply struct {
		Type string `json:"type"`
		Data struct {
			Text   string `json:"text"`
			Status string `json:"status"`
		} `json:"data"`
		Timestamp int64 `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &reply))
	assert.Equal(t, "transcription", reply.Type)
	assert.Equal(t, `Test received: "ping"`, reply.Data.Text)
	assert.Equal(t, "processed", reply.Data.Status)
	assert.NotZero(t, reply.Timestamp)
}

func TestSubmitDescription(t *testing.T) {
	h := newHub()
	sub := &fakeSubscriber{id: "ws-1", kind: models.SubscriberSocket}
	require.NoError(t, h.JoinSocket(sub))

	require.NoError(t, h.SubmitDescription([]byte(`{"description_pt":"cadeira","objects":["chair"]}`)))
	assert.Error(t, h.SubmitDescription([]byte(`{"objects":["chair"]}`)))

	frames := sub.socketFrames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, "detection", frames[1].Type)
	assert.Equal(t, 1, h.Store().HistoryCount())
}
