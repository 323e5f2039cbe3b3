package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/models"
	"github.com/pcdvisual/telemetry-hub/internal/state"
)

type testEnv struct {
	hub      *hub.Hub
	handlers *Handlers
	server   *httptest.Server
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	h := hub.New(hub.Config{Caps: state.DefaultCaps(), Commands: []string{"test_motor"}})
	handlers := New(h, cfg)

	mux := http.NewServeMux()
	mux.Handle("/esp32", handlers.DeviceHandler(models.RolePai))
	mux.Handle("/esp32-cam", handlers.DeviceHandler(models.RoleCamera))
	mux.Handle("/ws", handlers.SocketHandler())
	mux.Handle("/api/stream/events", handlers.StreamHandler())

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		handlers.Close()
		srv.Close()
	})
	return &testEnv{hub: h, handlers: handlers, server: srv}
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out map[string]interface{}
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

type sseEvent struct {
	name string
	data string
}

type sseReader struct {
	events chan sseEvent
}

func (e *testEnv) openStream(t *testing.T) *sseReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/api/stream/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := &sseReader{events: make(chan sseEvent, 64)}
	go func() {
		defer close(r.events)
		scanner := bufio.NewScanner(resp.Body)
		var cur sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				cur.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				cur.data = strings.TrimPrefix(line, "data: ")
			case line == "":
				r.events <- cur
				cur = sseEvent{}
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})
	return r
}

func (r *sseReader) next(t *testing.T) sseEvent {
	t.Helper()
	select {
	case evt, ok := <-r.events:
		require.True(t, ok, "stream closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return sseEvent{}
	}
}

func TestDeviceEndpoint_AckAndErrorFrames(t *testing.T) {
	env := newTestEnv(t, Config{})
	conn := env.dial(t, "/esp32")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"identify","deviceId":"M1"}`)))
	ack := readJSON(t, conn)
	assert.Equal(t, "ok", ack["status"])
	assert.NotZero(t, ack["receivedAt"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	frame := readJSON(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.NotEmpty(t, frame["message"])
	assert.NotNil(t, frame["details"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	assert.Equal(t, "error", readJSON(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	assert.Equal(t, "ok", readJSON(t, conn)["status"])

	assert.True(t, env.hub.Store().ModuleStatuses().Pai.Connected)
}

func TestDeviceEndpoint_CloseMarksRoleModulesDisconnected(t *testing.T) {
	env := newTestEnv(t, Config{})
	pai := env.dial(t, "/esp32")
	cam := env.dial(t, "/esp32-cam")

	require.NoError(t, pai.WriteMessage(websocket.TextMessage, []byte(`{"type":"sensor_update","distance":5,"vibrationLevel":1,"alertLevel":"ok","alertMsg":""}`)))
	readJSON(t, pai)
	require.NoError(t, cam.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	readJSON(t, cam)

	require.NoError(t, pai.Close())
	assert.Eventually(t, func() bool {
		st := env.hub.Store().ModuleStatuses()
		return !st.Pai.Connected && !st.Sensor.Connected && !st.Motor.Connected
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, env.hub.Store().ModuleStatuses().Camera.Connected)
}

func TestDeviceEndpoint_NewConnectionReplacesPrevious(t *testing.T) {
	env := newTestEnv(t, Config{})
	first := env.dial(t, "/esp32-cam")
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	readJSON(t, first)

	second := env.dial(t, "/esp32-cam")
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`)))
	readJSON(t, second)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	assert.True(t, env.hub.Store().ModuleStatuses().Camera.Connected)
	socket, _ := env.hub.Counts()
	assert.Equal(t, 0, socket)
}

func TestSocketEndpoint_SnapshotThenLive(t *testing.T) {
	env := newTestEnv(t, Config{})
	cam := env.dial(t, "/esp32-cam")
	for _, desc := range []string{"d1", "d2"} {
		require.NoError(t, cam.WriteMessage(websocket.TextMessage, []byte(`{"type":"detection","description_pt":"`+desc+`"}`)))
		readJSON(t, cam)
	}

	app := env.dial(t, "/ws")
	history := readJSON(t, app)
	assert.Equal(t, "history", history["type"])
	assert.Len(t, history["data"], 2)
	current := readJSON(t, app)
	assert.Equal(t, "current", current["type"])
	assert.Equal(t, "d2", current["data"].(map[string]interface{})["description"])

	require.NoError(t, cam.WriteMessage(websocket.TextMessage, []byte(`{"type":"detection","description_pt":"d3","objects":["cup"]}`)))
	readJSON(t, cam)
	live := readJSON(t, app)
	assert.Equal(t, "detection", live["type"])
	assert.Equal(t, "d3", live["data"].(map[string]interface{})["description"])

	require.NoError(t, app.WriteMessage(websocket.TextMessage, []byte(`{"type":"test","data":{"text":"hello"}}`)))
	echo := readJSON(t, app)
	assert.Equal(t, "transcription", echo["type"])
	assert.Equal(t, `Test received: "hello"`, echo["data"].(map[string]interface{})["text"])
}

func TestStreamEndpoint_SeedLiveAndKeepalive(t *testing.T) {
	env := newTestEnv(t, Config{KeepaliveInterval: 50 * time.Millisecond})
	stream := env.openStream(t)

	assert.Equal(t, "connected", stream.next(t).name)
	all := stream.next(t)
	assert.Equal(t, "esp32-status-all", all.name)
	var statuses models.ModuleStatuses
	require.NoError(t, json.Unmarshal([]byte(all.data), &statuses))
	assert.False(t, statuses.Sensor.Connected)

	pai := env.dial(t, "/esp32")
	require.NoError(t, pai.WriteMessage(websocket.TextMessage, []byte(`{"type":"sensor_update","distance":15,"vibrationLevel":80,"alertLevel":"danger","alertMsg":"obstacle"}`)))
	readJSON(t, pai)

	var names []string
	var alert string
	for len(names) < 2 {
		evt := stream.next(t)
		if evt.name == models.EventPing {
			continue
		}
		names = append(names, evt.name)
		if evt.name == models.EventSystemAlert {
			alert = evt.data
		}
	}
	assert.Equal(t, []string{"sensor-update", "system-alert"}, names)
	assert.Contains(t, alert, `"message":"obstacle (15cm)"`)

	for {
		if evt := stream.next(t); evt.name == models.EventPing {
			assert.Contains(t, evt.data, "timestamp")
			break
		}
	}
}

func TestClose_EndsSubscribers(t *testing.T) {
	env := newTestEnv(t, Config{})
	app := env.dial(t, "/ws")
	readJSON(t, app)
	stream := env.openStream(t)
	stream.next(t)
	stream.next(t)

	assert.Eventually(t, func() bool {
		socket, sse := env.hub.Counts()
		return socket == 1 && sse == 1
	}, time.Second, 10*time.Millisecond)

	env.handlers.Close()

	require.NoError(t, app.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := app.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		socket, sse := env.hub.Counts()
		return socket == 0 && sse == 0
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, env.handlers.Wait(ctx))
}
