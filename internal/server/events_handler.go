package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// eventFrame is the wire shape of one forwarded event, per spec.md §6.
type eventFrame struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

const eventWriteWait = 10 * time.Second

// handleEventStream upgrades to a WebSocket and forwards every
// Broadcaster event to the client as a JSON text frame until the client
// disconnects.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub, cancel := s.Broadcaster.Subscribe()
	defer cancel()

	go drainClientReads(conn)

	for evt := range sub {
		conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
		if err := conn.WriteJSON(eventFrame{Event: evt.Type, Payload: evt.Payload}); err != nil {
			return
		}
	}
}

// drainClientReads discards anything the client sends on an otherwise
// server->client-only socket, so gorilla's ping/close control-frame
// handling keeps running for the lifetime of the connection.
func drainClientReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
