package broadcast

import (
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("subscriber queue full")
	ErrQueueClosed = errors.New("subscriber queue closed")
)

// Queue is a bounded, non-blocking frame buffer drained by a single writer
// goroutine. The frame channel is never closed; Done signals shutdown.
type Queue struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		frames: make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

// Push enqueues frame without blocking.
func (q *Queue) Push(frame []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.frames <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) Frames() <-chan []byte { return q.frames }

func (q *Queue) Done() <-chan struct{} { return q.done }

func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
