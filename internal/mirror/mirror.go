// FilePath: internal/mirror/mirror.go
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/models"
)

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
	Buffer   int
}

// Publisher is the subset of the Redis client used by the mirror.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Record is the JSON document published for every event.
type Record struct {
	Event      string          `json:"event"`
	Target     string          `json:"target"`
	Data       json.RawMessage `json:"data"`
	MirroredAt int64           `json:"mirroredAt"`
}

// RedisMirror republishes broadcast events on a Redis pub/sub channel.
// Mirror never blocks; records are dropped when the queue is full.
type RedisMirror struct {
	pub     Publisher
	channel string
	queue   chan Record

	mu      sync.Mutex
	dropped int64
}

func New(pub Publisher, channel string, buffer int) *RedisMirror {
	if buffer <= 0 {
		buffer = 256
	}
	return &RedisMirror{pub: pub, channel: channel, queue: make(chan Record, buffer)}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Mirror encodes evt and queues it for publishing.
func (m *RedisMirror) Mirror(evt models.Event) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		nuts.L.Errorf("[Mirror] Failed to encode %s: %v", evt.Name, err)
		return
	}
	rec := Record{
		Event:      evt.Name,
		Target:     evt.Target.String(),
		Data:       data,
		MirroredAt: time.Now().UnixMilli(),
	}
	select {
	case m.queue <- rec:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		nuts.L.Warnf("[Mirror] Queue full, dropped %s", evt.Name)
	}
}

// Dropped returns the number of records dropped so far.
func (m *RedisMirror) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Run publishes queued records until ctx is done.
func (m *RedisMirror) Run(ctx context.Context) {
	nuts.L.Infof("[Mirror] Publishing events to redis channel %s", m.channel)
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-m.queue:
			payload, err := json.Marshal(rec)
			if err != nil {
				nuts.L.Errorf("[Mirror] Failed to encode record: %v", err)
				continue
			}
			if err := m.pub.Publish(ctx, m.channel, payload).Err(); err != nil {
				nuts.L.Warnf("[Mirror] Failed to publish %s: %v", rec.Event, err)
			}
		}
	}
}
