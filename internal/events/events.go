package events

import (
	"fmt"

	nuts "github.com/vaudience/go-nuts"
)

// Lifecycle events emitted by the hub.
const (
	DeviceConnected    = "device.connected"
	DeviceDisconnected = "device.disconnected"
	DeviceReplaced     = "device.replaced"
	SubscriberJoined   = "subscriber.joined"
	SubscriberLeft     = "subscriber.left"
	MessageRejected    = "message.rejected"
)

// All lists every lifecycle event.
var All = []string{
	DeviceConnected,
	DeviceDisconnected,
	DeviceReplaced,
	SubscriberJoined,
	SubscriberLeft,
	MessageRejected,
}

// Handler receives the connection id and labels of an emitted event.
type Handler func(id string, labels map[string]string)

// Bus carries lifecycle notifications between the hub and its observers.
// Handlers run synchronously on the emitting goroutine.
type Bus struct {
	emitter *nuts.EventEmitter
}

func NewBus() *Bus {
	return &Bus{emitter: nuts.NewEventEmitter()}
}

// Emit publishes event for the connection id with optional labels. A
// listener that cannot be called stops delivery of that event and the
// failure is logged and returned.
func (b *Bus) Emit(event, id string, labels map[string]string) error {
	if b == nil {
		return nil
	}
	if err := b.emitter.Emit(event, id, labels); err != nil {
		nuts.L.Errorf("[Events] Failed to deliver %s for %s: %v", event, id, err)
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}

// On registers handler for event under listenerID.
func (b *Bus) On(event, listenerID string, handler Handler) error {
	// The emitter matches listener parameters against Emit arguments, so
	// the registered func must take exactly (string, map[string]string).
	fn := func(id string, labels map[string]string) { handler(id, labels) }
	if _, err := b.emitter.On(event, listenerID, fn); err != nil {
		return fmt.Errorf("failed to register %s listener %s: %w", event, listenerID, err)
	}
	return nil
}
