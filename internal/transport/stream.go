package transport

import (
	"net/http"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/broadcast"
	"github.com/pcdvisual/telemetry-hub/internal/models"
)

type streamSubscriber struct {
	id    string
	queue *broadcast.Queue
}

func (s *streamSubscriber) ID() string                  { return s.id }
func (s *streamSubscriber) Kind() models.SubscriberKind { return models.SubscriberStream }
func (s *streamSubscriber) Enqueue(frame []byte) error  { return s.queue.Push(frame) }

type pingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// StreamHandler serves dashboard clients over server-sent events.
func (t *Handlers) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		t.wg.Add(1)
		defer t.wg.Done()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sub := &streamSubscriber{id: nuts.NID("sse", 12), queue: broadcast.NewQueue(t.cfg.SubscriberBuffer)}
		if err := t.hub.JoinStream(sub); err != nil {
			nuts.L.Errorf("[SSE] Failed to seed subscriber %s: %v", sub.id, err)
			return
		}
		nuts.L.Infof("[SSE] Subscriber %s connected from %s", sub.id, r.RemoteAddr)
		defer func() {
			t.hub.Leave(sub.id)
			sub.queue.Close()
			nuts.L.Infof("[SSE] Subscriber %s disconnected", sub.id)
		}()

		ticker := time.NewTicker(t.cfg.KeepaliveInterval)
		defer ticker.Stop()

		write := func(frame []byte) {
			if _, err := w.Write(frame); err != nil {
				nuts.L.Warnf("[SSE] Failed to write to subscriber %s: %v", sub.id, err)
				return
			}
			flusher.Flush()
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case <-t.ctx.Done():
				return
			case frame := <-sub.queue.Frames():
				write(frame)
			case now := <-ticker.C:
				frame, err := broadcast.StreamFrame(models.EventPing, pingPayload{Timestamp: models.MillisOf(now)})
				if err != nil {
					nuts.L.Errorf("[SSE] Failed to encode ping: %v", err)
					continue
				}
				write(frame)
			}
		}
	}
}
