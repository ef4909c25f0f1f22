// Package notify pushes panel notices to connected console clients over
// WebSocket.
package notify

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Notice is the JSON payload sent to console clients. Backend error text
// travels through Message unmodified.
type Notice struct {
	Type    string    `json:"type"`
	Panel   string    `json:"panel"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Hub manages WebSocket connections from console clients and broadcasts
// panel notices to all of them. It satisfies panel.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	// writeMu serializes broadcasts; gorilla allows one concurrent
	// writer per connection.
	writeMu  sync.Mutex
	onChange func(count int)
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// SetOnChange registers a hook invoked with the client count after every
// register and unregister.
func (h *Hub) SetOnChange(fn func(count int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

// Register adds a new WebSocket connection and starts its keepalive.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.notifyChange()

	// Keep the connection alive by reading (and discarding) client
	// messages; a read error means the client is gone.
	go func() {
		defer h.unregister(conn)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, exists := h.clients[conn]
			h.mu.RUnlock()
			if !exists {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
	h.notifyChange()
}

func (h *Hub) notifyChange() {
	h.mu.RLock()
	fn := h.onChange
	count := len(h.clients)
	h.mu.RUnlock()
	if fn != nil {
		fn(count)
	}
}

// ClientCount reports connected console clients, for the metrics gauge.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Info broadcasts an informational panel notice.
func (h *Hub) Info(panel, message string) {
	h.broadcast(Notice{Type: "notice", Panel: panel, Level: "info", Message: message, Time: time.Now()})
}

// Error broadcasts an error panel notice.
func (h *Hub) Error(panel, message string) {
	h.broadcast(Notice{Type: "notice", Panel: panel, Level: "error", Message: message, Time: time.Now()})
}

func (h *Hub) broadcast(notice Notice) {
	payload, err := json.Marshal(notice)
	if err != nil {
		log.Printf("[WS] Failed to marshal notice: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("[WS] Write error, removing client: %v", err)
			go h.unregister(conn)
		}
	}
}
