package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/models"
)

// deviceConn is the handle the hub keeps for an active device.
type deviceConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *deviceConn) ID() string { return c.id }

func (c *deviceConn) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

func (c *deviceConn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// DeviceHandler upgrades the request and runs the read loop for a device
// of the given role.
func (t *Handlers) DeviceHandler(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			nuts.L.Errorf("[DeviceWS] Failed to upgrade %s connection from %s: %v", role, r.RemoteAddr, err)
			return
		}

		t.wg.Add(1)
		defer t.wg.Done()

		conn := &deviceConn{id: nuts.NID("dev", 12), ws: ws, writeTimeout: t.cfg.WriteTimeout}
		ws.SetReadLimit(t.cfg.ReadLimit)

		t.hub.ConnectDevice(role, conn)
		defer func() {
			t.hub.DisconnectDevice(role, conn)
			_ = conn.Close()
		}()

		for {
			msgType, raw, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					nuts.L.Warnf("[DeviceWS] %s connection %s closed unexpectedly: %v", role, conn.id, err)
				}
				return
			}
			if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
				continue
			}

			var reply interface{}
			ack, err := t.hub.HandleDeviceMessage(role, raw)
			if err != nil {
				reply = hub.RejectionFrame(role, err)
			} else {
				reply = ack
			}
			if err := conn.Send(reply); err != nil {
				nuts.L.Warnf("[DeviceWS] Failed to reply to %s connection %s: %v", role, conn.id, err)
				return
			}
		}
	}
}
