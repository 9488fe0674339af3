package session

import (
	"sync"

	"mathrace/internal/metrics"

	"github.com/coder/websocket"
)

// Hub tracks live sessions per room.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Session // room code -> player id -> session
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*Session),
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.sessions[s.RoomCode]
	if room == nil {
		room = make(map[string]*Session)
		h.sessions[s.RoomCode] = room
	}
	if _, ok := room[s.PlayerID]; !ok {
		metrics.SessionsActive.Inc()
	}
	room[s.PlayerID] = s
}

func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.sessions[s.RoomCode]
	if !ok {
		return
	}
	if _, ok := room[s.PlayerID]; !ok {
		return
	}
	delete(room, s.PlayerID)
	metrics.SessionsActive.Dec()
	if len(room) == 0 {
		delete(h.sessions, s.RoomCode)
	}
}

// Count returns the number of open sessions across all rooms.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.sessions {
		n += len(room)
	}
	return n
}

func (h *Hub) RoomCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[code])
}

// CloseAll closes every connection, ending their sessions.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	conns := make([]Conn, 0)
	for _, room := range h.sessions {
		for _, s := range room {
			conns = append(conns, s.Conn)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, reason)
	}
}
