// Package websocket pushes sync status and notifications to connected
// screens (back office, kitchen display, the terminal UI).
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xelth-com/eckposgo/internal/notify"
)

// Message types sent to clients
const (
	TypeStatus       = "SYNC_STATUS"
	TypeNotification = "NOTIFICATION"
	TypeSyncNow      = "SYNC_NOW"
)

// Message is the envelope of every outbound frame
type Message struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	// Inbound commands by message type, e.g. SYNC_NOW
	handlers map[string]func()

	log *logrus.Entry
	mu  sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		handlers:   make(map[string]func()),
		log:        log,
	}
}

// Handle registers fn for inbound messages of msgType. Call before Run.
func (h *Hub) Handle(msgType string, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = fn
}

// Run starts the hub's main loop; it returns when ctx is done and closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				close(old.send)
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.WithField("client", client.ID).Debug("📱 Client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.ID]; ok && cur == client {
				delete(h.clients, client.ID)
				close(client.send)
				h.log.WithField("client", client.ID).Debug("📴 Client disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for id, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.WithField("client", id).Warn("⚠️ Client send buffer full, message dropped")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a message for every client. It never blocks; when the
// hub is backed up the message is dropped.
func (h *Hub) Broadcast(msgType string, data any) bool {
	payload, err := json.Marshal(Message{Type: msgType, Data: data, At: time.Now().UTC()})
	if err != nil {
		h.log.WithError(err).Error("Error marshaling message")
		return false
	}
	select {
	case h.broadcast <- payload:
		return true
	default:
		return false
	}
}

// Notify forwards operator notifications to every screen
func (h *Hub) Notify(n notify.Notification) {
	h.Broadcast(TypeNotification, n)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handler(msgType string) func() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handlers[msgType]
}
