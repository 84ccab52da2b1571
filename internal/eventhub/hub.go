// Package eventhub fans out reconciliation events to connected WebSocket
// clients (the admin UI's live status view). It is the daemon's monitoring
// hub, adapted from OFC-agnostic event broadcasting to the OFC status and
// reconciliation outcomes internal/worker produces.
package eventhub

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType distinguishes the kinds of events the hub carries.
type EventType string

const (
	EventReconcile EventType = "reconcile"
	EventClearAll  EventType = "clear_all"
	EventOFCStatus EventType = "ofc_status"
)

// Event is one notification broadcast to every connected client.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	OFCUUID   string    `json:"ofc_uuid"`
	NetID     string    `json:"net_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Created   int       `json:"created,omitempty"`
	Deleted   int       `json:"deleted,omitempty"`
}

// Hub manages WebSocket connections subscribed to reconciliation events.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

// New creates an empty Hub. Call Run in its own goroutine to start serving.
func New() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run serves the hub's event loop until ctx-independent shutdown (the
// process exiting); there is nothing to tear down gracefully since losing
// client connections on exit is harmless.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("[eventhub] client connected, total: %d", n)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("[eventhub] client disconnected, total: %d", n)

		case event := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(event); err != nil {
					log.Printf("[eventhub] write error: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register subscribes a client connection to future broadcasts.
func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister drops a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// Broadcast sends an event to all connected clients without blocking the
// caller: a full channel drops the event and logs it rather than stalling
// the worker loop that produced it.
func (h *Hub) Broadcast(event Event) {
	event.Timestamp = time.Now()
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[eventhub] broadcast channel full, event dropped: %+v", event)
	}
}
