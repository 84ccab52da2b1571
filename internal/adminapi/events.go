package adminapi

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"ofcd/internal/eventhub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Accept every origin; access is gated by the router's auth layer.
		return true
	},
}

// eventsHandler upgrades the connection to WebSocket and subscribes it to
// the reconciliation event stream.
func eventsHandler(hub *eventhub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[adminapi] WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(conn)

		// Drain client messages (ping/pong) until the peer goes away.
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						log.Printf("[adminapi] WebSocket error: %v", err)
					}
					break
				}
			}
		}()
	}
}
