package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/broadcast"
	"github.com/pcdvisual/telemetry-hub/internal/models"
)

type socketSubscriber struct {
	id    string
	ws    *websocket.Conn
	queue *broadcast.Queue
}

func (s *socketSubscriber) ID() string                  { return s.id }
func (s *socketSubscriber) Kind() models.SubscriberKind { return models.SubscriberSocket }
func (s *socketSubscriber) Enqueue(frame []byte) error  { return s.queue.Push(frame) }

// writePump is the only writer of data frames on the connection.
func (t *Handlers) writePump(s *socketSubscriber) {
	for {
		select {
		case frame := <-s.queue.Frames():
			_ = s.ws.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				nuts.L.Warnf("[AppWS] Failed to write to subscriber %s: %v", s.id, err)
			}
		case <-s.queue.Done():
			return
		case <-t.ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
			_ = s.ws.Close()
			return
		}
	}
}

// SocketHandler serves app clients over a bidirectional socket.
func (t *Handlers) SocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			nuts.L.Errorf("[AppWS] Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
			return
		}

		t.wg.Add(1)
		defer t.wg.Done()

		sub := &socketSubscriber{
			id:    nuts.NID("ws", 12),
			ws:    ws,
			queue: broadcast.NewQueue(t.cfg.SubscriberBuffer),
		}
		defer ws.Close()

		if err := t.hub.JoinSocket(sub); err != nil {
			nuts.L.Errorf("[AppWS] Failed to seed subscriber %s: %v", sub.id, err)
			return
		}
		nuts.L.Infof("[AppWS] Subscriber %s connected from %s", sub.id, r.RemoteAddr)

		go t.writePump(sub)
		defer func() {
			t.hub.Leave(sub.id)
			sub.queue.Close()
			nuts.L.Infof("[AppWS] Subscriber %s disconnected", sub.id)
		}()

		ws.SetReadLimit(t.cfg.ReadLimit)
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					nuts.L.Warnf("[AppWS] Subscriber %s closed unexpectedly: %v", sub.id, err)
				}
				return
			}
			t.hub.HandleSocketMessage(sub, raw)
		}
	}
}
