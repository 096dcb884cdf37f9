// Package hub fans messages out to WebSocket clients through a single
// goroutine that owns the client set.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"
)

// Message is one broadcast payload. Kind is the WebSocket frame type,
// websocket.TextMessage or websocket.BinaryMessage.
type Message struct {
	Kind int
	Data []byte
}

// sendBuffer is the per-client queue. A client that falls this far behind is dropped.
const sendBuffer = 16

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	running  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once

	// Stats
	sent    atomic.Int64
	dropped atomic.Int64
}

// New creates a new Hub. Call Run to start delivering messages.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run delivers broadcasts until ctx is done, then disconnects every client.
// A hub cannot be restarted.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.stopOnce.Do(func() { close(h.stopped) })
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) deliver(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
			h.sent.Add(1)
		default:
			// too slow to keep up with the stream
			close(client.send)
			delete(h.clients, client)
			h.dropped.Add(1)
			h.logger.Warn("dropped slow client")
		}
	}
}

// Broadcast queues msg for every connected client. It never blocks; when the
// broadcast queue is full the message is discarded.
func (h *Hub) Broadcast(msg Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.logger.Debug("broadcast queue full, dropping message")
		return false
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Kind: websocket.TextMessage, Data: data})
	return nil
}

// BroadcastBinary broadcasts binary data such as camera frames.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Message{Kind: websocket.BinaryMessage, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns delivery counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Name:           h.name,
		Clients:        h.ClientCount(),
		MessagesSent:   h.sent.Load(),
		ClientsDropped: h.dropped.Load(),
	}
}

// Stats contains hub statistics.
type Stats struct {
	Name           string `json:"name"`
	Clients        int    `json:"clients"`
	MessagesSent   int64  `json:"messages_sent"`
	ClientsDropped int64  `json:"clients_dropped"`
}
