// FilePath: internal/broadcast/broadcast.go
package broadcast

import (
	"sync"

	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/models"
)

// Subscriber is a registered fan-out destination. Enqueue must not block.
type Subscriber interface {
	ID() string
	Kind() models.SubscriberKind
	Enqueue(frame []byte) error
}

// Sink receives a copy of every broadcast event. Mirror must not block.
type Sink interface {
	Mirror(evt models.Event)
}

// Broadcaster owns the subscriber registry and delivers events to it.
type Broadcaster struct {
	mu    sync.RWMutex
	subs  map[string]Subscriber
	sinks []Sink
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[string]Subscriber)}
}

// Add registers s. Registering the same ID twice keeps a single entry.
func (b *Broadcaster) Add(s Subscriber) {
	b.mu.Lock()
	b.subs[s.ID()] = s
	b.mu.Unlock()
}

// Remove deregisters the subscriber with id and reports whether it was
// registered.
func (b *Broadcaster) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	return true
}

// Counts returns the number of registered socket and stream subscribers.
func (b *Broadcaster) Counts() (socket, stream int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.Kind() == models.SubscriberSocket {
			socket++
		} else {
			stream++
		}
	}
	return socket, stream
}

func (b *Broadcaster) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Broadcast delivers each event to every subscriber whose kind matches the
// event target. A failed delivery is logged and the subscriber stays
// registered.
func (b *Broadcaster) Broadcast(events ...models.Event) {
	if len(events) == 0 {
		return
	}

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	sinks := b.sinks
	b.mu.RUnlock()

	for _, evt := range events {
		var (
			frames [2][]byte
			failed [2]bool
		)
		for _, s := range subs {
			kind := s.Kind()
			if !evt.Target.Has(kind.Target()) {
				continue
			}
			slot := 0
			if kind == models.SubscriberSocket {
				slot = 1
			}
			if failed[slot] {
				continue
			}
			if frames[slot] == nil {
				frame, err := Encode(kind, evt.Name, evt.Data)
				if err != nil {
					nuts.L.Errorf("[Broadcast] Failed to encode %s for %s subscribers: %v", evt.Name, kind, err)
					failed[slot] = true
					continue
				}
				frames[slot] = frame
			}
			if err := s.Enqueue(frames[slot]); err != nil {
				nuts.L.Warnf("[Broadcast] Dropped %s for %s subscriber %s: %v", evt.Name, kind, s.ID(), err)
			}
		}
		for _, sink := range sinks {
			sink.Mirror(evt)
		}
	}
}

// Send delivers a single event to one subscriber, regardless of registration.
func Send(s Subscriber, name string, data interface{}) error {
	frame, err := Encode(s.Kind(), name, data)
	if err != nil {
		return err
	}
	return s.Enqueue(frame)
}
