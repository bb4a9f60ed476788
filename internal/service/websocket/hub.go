// Package websocket pushes alert events to connected viewers.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"proctorcam/internal/logger"
)

const (
	broadcastBuffer = 32
	writeWait       = 5 * time.Second
)

type registration struct {
	conn     *websocket.Conn
	greeting []byte
}

// HubService keeps the set of viewer connections and writes every broadcast
// message to each of them from a single goroutine.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan registration
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Call Run to start it.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan registration),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every connection.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			h.logger.Info("Alert hub stopped")
			return

		case reg := <-h.register:
			h.mutex.Lock()
			h.clients[reg.conn] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Alert viewer connected. Total: %d", total)
			if reg.greeting != nil {
				h.send(reg.conn, reg.greeting)
			}

		case client := <-h.unregister:
			h.drop(client)

		case message := <-h.broadcast:
			h.mutex.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mutex.RUnlock()

			for _, client := range clients {
				h.send(client, message)
			}
		}
	}
}

func (h *HubService) send(client *websocket.Conn, message []byte) {
	client.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Error("Error sending alert message: %v", err)
		h.drop(client)
	}
}

func (h *HubService) drop(client *websocket.Conn) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.Close()
	}
	total := len(h.clients)
	h.mutex.Unlock()

	if ok {
		h.logger.Info("Alert viewer disconnected. Total: %d", total)
	}
}

// Register adds a connection; greeting, if not nil, is written to it first.
// After the hub stopped the connection is closed instead.
func (h *HubService) Register(client *websocket.Conn, greeting []byte) {
	select {
	case h.register <- registration{conn: client, greeting: greeting}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a connection.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. It never blocks: when the
// queue is full the message is dropped.
func (h *HubService) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("⚠️  Alert broadcast queue full - dropping message")
	}
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
