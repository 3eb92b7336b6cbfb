package ws

import (
	"log"
	"sync"
)

// Hub tracks the live websocket client per room member. State fan-out goes
// through the coordinator's per-member outboxes; the hub only manages
// connection lifetime, including kicking out a superseded attachment when
// the same member connects twice.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*Client),
	}
}

func (h *Hub) Add(roomID, memberID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	if old, ok := h.rooms[roomID][memberID]; ok {
		old.Close()
	}
	h.rooms[roomID][memberID] = c
	log.Printf("ws: member %s connected to room %s (total: %d)", memberID, roomID, len(h.rooms[roomID]))
}

func (h *Hub) Remove(roomID, memberID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[roomID]; ok {
		if cur, ok := clients[memberID]; ok && cur == c {
			delete(clients, memberID)
			if len(clients) == 0 {
				delete(h.rooms, roomID)
			}
			log.Printf("ws: member %s disconnected from room %s", memberID, roomID)
		}
	}
}
