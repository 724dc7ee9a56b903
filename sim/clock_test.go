package sim

import (
	"context"
	"testing"
	"time"
)

func TestClock_FiresUntilCancelled(t *testing.T) {
	// GIVEN a fast clock feeding a channel
	fired := make(chan struct{}, 16)
	clock := NewClock(5*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		clock.Run(ctx)
		close(done)
	}()

	// WHEN three ticks have fired
	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("clock did not fire within 1s")
		}
	}

	// THEN cancelling the context stops the clock
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("clock did not stop after cancel")
	}
}
