package broadcast

import (
	"bytes"
	"encoding/json"

	"github.com/pcdvisual/telemetry-hub/internal/models"
)

// SocketFrame encodes a {type, data} envelope for socket subscribers.
func SocketFrame(name string, data interface{}) ([]byte, error) {
	return json.Marshal(models.SocketEnvelope{Type: name, Data: data})
}

// StreamFrame encodes a named server-sent event.
func StreamFrame(name string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(name) + len(payload) + 16)
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// Encode picks the frame encoding for kind.
func Encode(kind models.SubscriberKind, name string, data interface{}) ([]byte, error) {
	if kind == models.SubscriberSocket {
		return SocketFrame(name, data)
	}
	return StreamFrame(name, data)
}
