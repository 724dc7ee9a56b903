// Package client implements the consumer side of the control plane: a
// session that connects to the server's WebSocket endpoint, survives
// connection loss with exponential backoff, and renders snapshots through
// a throttle so a chatty server can never starve the consumer.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/edgeplane/edgeplane/server"
	"github.com/edgeplane/edgeplane/sim"
)

// State is the session lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// ErrReconnectExhausted is returned when every reconnect attempt failed.
// The session stays disconnected until the caller restarts the cycle.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Config groups session parameters. Immutable after New.
type Config struct {
	// URL of the server's WebSocket endpoint, e.g. ws://host:8080/ws.
	URL          string
	Backoff      Backoff
	RenderWindow time.Duration
}

// envelope is the wire shape of one server frame, with the payload left
// raw until the type tag is known.
type envelope struct {
	Type server.EventType `json:"type"`
	Seq  uint64           `json:"seq"`
	Data json.RawMessage  `json:"data"`
}

// Session manages one client connection lifecycle:
// Disconnected -> Connecting -> Connected -> Reconnecting -> Connecting...
// The attempt counter resets only on a successful connect.
type Session struct {
	cfg      Config
	throttle *Throttler
	onResult func(server.InferencePayload)

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	attempts int
	lastSeq  uint64
}

// New creates a Session rendering through r. r must not be nil.
func New(cfg Config, r Renderer) *Session {
	if cfg.RenderWindow <= 0 {
		cfg.RenderWindow = 500 * time.Millisecond
	}
	return &Session{
		cfg:      cfg,
		throttle: NewThrottler(cfg.RenderWindow, r),
		state:    StateDisconnected,
	}
}

// OnInferenceResult registers a callback for unicast inference results.
// Must be called before Run.
func (s *Session) OnInferenceResult(fn func(server.InferencePayload)) {
	s.onResult = fn
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastSeq returns the sequence number of the last snapshot received.
func (s *Session) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		logrus.Debugf("session state: %s -> %s", prev, st)
	}
}

// Send transmits one command on the current connection.
func (s *Session) Send(cmd server.Command) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close stops any deferred render. The session cannot be reused after.
func (s *Session) Close() {
	s.throttle.Close()
}

// Run drives the connection cycle until ctx is cancelled or reconnection
// is exhausted. A caller wanting the periodic-liveness behavior simply
// calls Run again after ErrReconnectExhausted; the throttler survives
// across runs.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()

	for {
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return ctx.Err()
		}

		s.setState(StateConnecting)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
		if err == nil {
			s.setState(StateConnected)
			s.mu.Lock()
			s.conn = conn
			s.attempts = 0
			s.mu.Unlock()
			logrus.Infof("connected to %s", s.cfg.URL)

			s.readLoop(ctx, conn)

			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			if ctx.Err() != nil {
				s.setState(StateDisconnected)
				return ctx.Err()
			}
			logrus.Warn("connection lost")
		} else {
			logrus.Warnf("connect failed: %v", err)
		}

		s.mu.Lock()
		attempt := s.attempts
		s.attempts++
		s.mu.Unlock()

		if s.cfg.Backoff.Exhausted(attempt) {
			s.setState(StateDisconnected)
			return ErrReconnectExhausted
		}

		delay := s.cfg.Backoff.Delay(attempt)
		s.setState(StateReconnecting)
		logrus.Infof("reconnecting in %v (attempt %d/%d)", delay, attempt+1, s.cfg.Backoff.MaxAttempts)
		select {
		case <-ctx.Done():
			s.setState(StateDisconnected)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// readLoop consumes frames until the connection dies. Receipt is never
// blocked by rendering: snapshots go through the throttle, which defers
// the actual render.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logrus.Warnf("bad frame: %v", err)
		return
	}

	switch env.Type {
	case server.EventSystemStatus:
		var snap sim.SystemState
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			logrus.Warnf("bad snapshot: %v", err)
			return
		}
		s.mu.Lock()
		s.lastSeq = env.Seq
		s.mu.Unlock()
		s.throttle.Offer(snap)

	case server.EventInferenceResult:
		var payload server.InferencePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logrus.Warnf("bad inference result: %v", err)
			return
		}
		if s.onResult != nil {
			s.onResult(payload)
		}

	case server.EventError:
		var payload server.ErrorPayload
		if err := json.Unmarshal(env.Data, &payload); err == nil {
			logrus.Warnf("server error: %s", payload.Reason)
		}

	default:
		// Unknown frame types are ignored for forward compatibility.
		logrus.Debugf("ignoring frame type %q", env.Type)
	}
}
