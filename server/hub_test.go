package server

import (
	"context"
	"testing"
	"time"

	"github.com/edgeplane/edgeplane/sim"
)

// stubSession builds a session with a one-slot FIFO and no transport; the
// queue is drained by hand so broadcast drops are deterministic.
func stubSession(id string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func TestHub_SustainedDropsEvictSession(t *testing.T) {
	// GIVEN a registered session whose FIFO is stuck full
	h := NewHub()
	s := stubSession("stalled")
	h.sessions[s.ID] = s
	s.send <- []byte("stuck")

	// WHEN it misses sessionDropLimit consecutive broadcasts
	for i := 0; i < sessionDropLimit; i++ {
		h.Broadcast(StatusEvent(uint64(i+1), sim.SystemState{}))
	}

	// THEN the hub evicts it and cancels its context
	if got := h.SessionCount(); got != 0 {
		t.Errorf("sessions: got %d, want 0 after sustained drops", got)
	}
	if s.ctx.Err() == nil {
		t.Error("evicted session's context should be cancelled")
	}
}

func TestHub_DropStreakResetsOnDelivery(t *testing.T) {
	// GIVEN a session that misses several broadcasts but then catches up
	h := NewHub()
	s := stubSession("catching-up")
	h.sessions[s.ID] = s
	s.send <- []byte("stuck")

	for i := 0; i < sessionDropLimit-1; i++ {
		h.Broadcast(StatusEvent(uint64(i+1), sim.SystemState{}))
	}
	<-s.send

	// WHEN one broadcast is delivered
	h.Broadcast(StatusEvent(100, sim.SystemState{}))
	<-s.send

	// AND it falls behind again for almost the full limit
	s.send <- []byte("stuck")
	for i := 0; i < sessionDropLimit-1; i++ {
		h.Broadcast(StatusEvent(uint64(200+i), sim.SystemState{}))
	}

	// THEN the streak restarted from zero and the session stays registered
	if got := h.SessionCount(); got != 1 {
		t.Errorf("sessions: got %d, want 1 (streak should reset on delivery)", got)
	}
}
