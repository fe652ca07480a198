package websocket

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

// ExamEvent is pushed to every connected client when an exam closes, so
// dashboards can flip to "results pending" without polling.
type ExamEvent struct {
	Event   string `json:"event"`
	ExamID  string `json:"exam_id"`
	Title   string `json:"title"`
	EndedAt string `json:"ended_at,omitempty"`
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan ExamEvent, 16)

func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			log.Printf("Client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case event := <-Broadcast:
			clientsMu.RLock()
			var dead []uuid.UUID
			for userID, conn := range clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Error sending event to client %s: %v", userID, err)
					conn.Close()
					dead = append(dead, userID)
				}
			}
			clientsMu.RUnlock()
			if len(dead) > 0 {
				clientsMu.Lock()
				for _, userID := range dead {
					delete(clients, userID)
				}
				clientsMu.Unlock()
			}
		}
	}
}
