// Package stream fans annotated JPEG frames out to MJPEG viewers.
package stream

import (
	"sync"

	"proctorcam/internal/logger"
	"proctorcam/internal/metrics"
)

const clientBuffer = 2

// Broadcaster delivers every published frame to all subscribers. A viewer
// that falls behind loses its oldest queued frame, never blocks Publish.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	closed  bool
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *logger.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		clients: make(map[int]chan []byte),
		logger:  logger,
		metrics: m,
	}
}

// Subscribe adds a viewer. The channel is closed when the stream ends or on
// Unsubscribe. Subscribing after Close returns an already closed channel.
func (b *Broadcaster) Subscribe() (int, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, clientBuffer)
	if b.closed {
		close(ch)
		return -1, ch
	}

	id := b.nextID
	b.nextID++
	b.clients[id] = ch
	b.metrics.SetViewers(len(b.clients))
	b.logger.Info("📺 Viewer #%d connected (total: %d)", id, len(b.clients))
	return id, ch
}

// Unsubscribe removes a viewer.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		b.metrics.SetViewers(len(b.clients))
		b.logger.Info("📺 Viewer #%d disconnected (remaining: %d)", id, len(b.clients))
	}
}

// Publish sends frame to every viewer without blocking.
func (b *Broadcaster) Publish(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.clients {
		select {
		case ch <- frame:
			continue
		default:
		}
		// Full: replace the oldest queued frame.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Viewers returns the number of connected viewers.
func (b *Broadcaster) Viewers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close ends the stream for every viewer. Safe to call more than once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
	b.metrics.SetViewers(0)
}
