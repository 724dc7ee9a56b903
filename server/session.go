package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// sendBuffer bounds the per-session FIFO. A session that falls this far
// behind starts losing frames rather than stalling the hub.
const sendBuffer = 64

// Session is one connected WebSocket client. Owned by the Hub; created on
// connect, destroyed on close or write failure. The Hub tracks the
// transport but does not own it: closing the session cancels its context,
// and the read pump tears the connection down.
type Session struct {
	ID          string
	ConnectedAt time.Time

	conn     *websocket.Conn
	send     chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
	lastSeen time.Time

	// Consecutive broadcasts dropped because the FIFO was full. Reset on
	// every successful enqueue; the Hub evicts past sessionDropLimit.
	dropStreak atomic.Int32
}

func newSession(id string, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		lastSeen:    time.Now(),
	}
}

// Context is cancelled when the session closes; in-flight inference runs
// for this session are cancelled with it.
func (s *Session) Context() context.Context {
	return s.ctx
}

// touch records receive activity. Called only from the read pump.
func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// writePump drains the session's FIFO onto the socket. Events arrive in
// enqueue order; the first write failure unregisters the session (lazy
// cleanup, no eager polling).
func (s *Session) writePump(hub *Hub) {
	defer hub.Unregister(s.ID)
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logrus.Debugf("session %s: write failed: %v", s.ID, err)
				return
			}
		}
	}
}
