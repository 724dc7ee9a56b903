package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The device serves its own dashboard; cross-origin tooling is allowed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades /ws connections, registers the session with the hub,
// and pumps inbound frames into the engine as typed commands.
type WSHandler struct {
	hub    *Hub
	engine *Engine
}

// NewWSHandler creates the /ws endpoint handler.
func NewWSHandler(hub *Hub, engine *Engine) *WSHandler {
	return &WSHandler{hub: hub, engine: engine}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("websocket upgrade failed: %v", err)
		return
	}

	sess := newSession(uuid.NewString(), conn)
	h.hub.Register(sess)

	// Greet the new session with the current document so it renders
	// immediately instead of waiting out a tick interval.
	if snap, err := h.engine.Snapshot(r.Context()); err == nil {
		h.hub.Unicast(sess.ID, StatusEvent(0, snap))
	}

	h.readPump(sess)
}

// readPump turns inbound frames into commands until the socket dies. Frame
// errors are answered per session and never affect other sessions or the
// clock.
func (h *WSHandler) readPump(sess *Session) {
	defer func() {
		h.hub.Unregister(sess.ID)
		_ = sess.conn.Close()
	}()

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Debugf("session %s: read error: %v", sess.ID, err)
			}
			return
		}
		sess.touch()

		cmd, err := ParseCommand(data)
		if err != nil {
			switch {
			case errors.Is(err, ErrUnknownCommand):
				logrus.Warnf("session %s: %v", sess.ID, err)
			default:
				logrus.Warnf("session %s: %v", sess.ID, err)
				h.hub.Unicast(sess.ID, ErrorEvent("malformed command"))
			}
			continue
		}
		h.engine.Submit(cmd, sess)
	}
}
