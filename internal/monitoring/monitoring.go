package monitoring

import (
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

// Config holds monitoring configuration
type Config struct {
	LogEvents bool
}

// Service counts lifecycle events
type Service struct {
	config  Config
	started time.Time

	mu     sync.Mutex
	counts map[string]int64
	last   map[string]time.Time
}

// NewService creates a new monitoring service
func NewService(config Config) *Service {
	return &Service{
		config:  config,
		started: time.Now(),
		counts:  make(map[string]int64),
		last:    make(map[string]time.Time),
	}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	ts := time.Now()

	s.mu.Lock()
	s.counts[eventName]++
	s.last[eventName] = ts
	s.mu.Unlock()

	if s.config.LogEvents {
		nuts.L.Infof("[Monitoring] Event %s recorded at %v with labels: %v", eventName, ts, labels)
	}
}

// EventCount returns how often eventName was recorded.
func (s *Service) EventCount(eventName string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[eventName]
}

// Metrics is the counter snapshot served by the metrics endpoint.
type Metrics struct {
	Since  time.Time            `json:"since"`
	Counts map[string]int64     `json:"counts"`
	Last   map[string]time.Time `json:"lastSeen"`
}

// GetEventMetrics returns a snapshot of all counters
func (s *Service) GetEventMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Metrics{
		Since:  s.started,
		Counts: make(map[string]int64, len(s.counts)),
		Last:   make(map[string]time.Time, len(s.last)),
	}
	for k, v := range s.counts {
		m.Counts[k] = v
	}
	for k, v := range s.last {
		m.Last[k] = v
	}
	return m
}
