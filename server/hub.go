package server

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub tracks the set of connected sessions and fans events out to them.
// Broadcast reaches every session registered at the time of the call; a
// session whose socket has died is unregistered lazily when its write pump
// hits the failure. Ordering is FIFO within a session (its send channel),
// with no guarantee across sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Register adds a session and starts its write pump.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	total := len(h.sessions)
	h.mu.Unlock()

	go s.writePump(h)
	logrus.Infof("session connected: %s (total: %d)", s.ID, total)
}

// Unregister removes a session and cancels its context. Idempotent.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	total := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.cancel()
	logrus.Infof("session disconnected: %s (total: %d)", id, total)
}

// sessionDropLimit is the number of consecutive broadcast drops after which
// a session is presumed dead and evicted. A healthy-but-slow session resets
// the streak the moment one frame fits its FIFO.
const sessionDropLimit = 8

// Broadcast delivers event to every registered session. A session whose
// FIFO is full loses the frame (the next tick carries fresher data anyway);
// a session that keeps losing frames is evicted.
func (h *Hub) Broadcast(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		logrus.Errorf("marshal broadcast event: %v", err)
		return
	}

	var stale []string
	h.mu.RLock()
	for _, s := range h.sessions {
		select {
		case s.send <- msg:
			s.dropStreak.Store(0)
		default:
			if s.dropStreak.Add(1) >= sessionDropLimit {
				stale = append(stale, s.ID)
			} else {
				logrus.Debugf("session %s is slow, dropping frame", s.ID)
			}
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		logrus.Warnf("session %s dropped %d consecutive frames, evicting", id, sessionDropLimit)
		h.Unregister(id)
	}
}

// Unicast delivers event to one session. Returns false if the session is
// gone or its FIFO is full.
func (h *Hub) Unicast(id string, event Event) bool {
	msg, err := json.Marshal(event)
	if err != nil {
		logrus.Errorf("marshal unicast event: %v", err)
		return false
	}

	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case s.send <- msg:
		return true
	default:
		logrus.Warnf("session %s is slow, dropping unicast", id)
		return false
	}
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
