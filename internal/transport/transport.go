// FilePath: internal/transport/transport.go
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pcdvisual/telemetry-hub/internal/hub"
)

// Config holds connection-level settings.
type Config struct {
	ReadLimit         int64
	WriteTimeout      time.Duration
	KeepaliveInterval time.Duration
	SubscriberBuffer  int
}

func (c *Config) applyDefaults() {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 * 1024
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 64
	}
}

// Handlers serves the device, socket subscriber and push-stream endpoints.
type Handlers struct {
	hub      *hub.Hub
	cfg      Config
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(h *hub.Hub, cfg Config) *Handlers {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close ends every subscriber connection and closes active device
// connections. It is safe to call more than once.
func (t *Handlers) Close() {
	t.cancel()
	t.hub.CloseDevices()
}

// Wait blocks until all connection goroutines have returned or ctx expires.
func (t *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
