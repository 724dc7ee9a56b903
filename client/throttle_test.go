package client

import (
	"sync"
	"testing"
	"time"

	"github.com/edgeplane/edgeplane/sim"
)

// recordingRenderer captures every render call.
type recordingRenderer struct {
	mu    sync.Mutex
	snaps []sim.SystemState
}

func (r *recordingRenderer) Render(snap sim.SystemState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recordingRenderer) rendered() []sim.SystemState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sim.SystemState, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func snapWithDetections(n int) sim.SystemState {
	return sim.SystemState{AI: sim.AIState{DetectionCount: n}}
}

func TestThrottler_CoalescesBurstToLatest(t *testing.T) {
	// GIVEN a 200ms render window
	rec := &recordingRenderer{}
	th := NewThrottler(200*time.Millisecond, rec)
	defer th.Close()

	// WHEN three snapshots arrive in quick succession
	th.Offer(snapWithDetections(1))
	th.Offer(snapWithDetections(2))
	th.Offer(snapWithDetections(3))

	// THEN nothing renders inside the window
	time.Sleep(50 * time.Millisecond)
	if got := len(rec.rendered()); got != 0 {
		t.Fatalf("renders inside window: got %d, want 0", got)
	}

	// AND exactly one render fires at the boundary, with the latest data
	time.Sleep(250 * time.Millisecond)
	snaps := rec.rendered()
	if len(snaps) != 1 {
		t.Fatalf("renders: got %d, want exactly 1", len(snaps))
	}
	if snaps[0].AI.DetectionCount != 3 {
		t.Errorf("rendered snapshot: got detections=%d, want latest (3)", snaps[0].AI.DetectionCount)
	}
}

func TestThrottler_SparseOffersRenderImmediately(t *testing.T) {
	// GIVEN a short window that has fully elapsed
	rec := &recordingRenderer{}
	th := NewThrottler(20*time.Millisecond, rec)
	defer th.Close()

	time.Sleep(30 * time.Millisecond)

	// WHEN a snapshot arrives
	th.Offer(snapWithDetections(7))

	// THEN it renders without waiting for a timer
	if snaps := rec.rendered(); len(snaps) != 1 || snaps[0].AI.DetectionCount != 7 {
		t.Fatalf("expected one immediate render of the offered snapshot, got %d", len(snaps))
	}
}

func TestThrottler_AtMostOneRenderPerWindow(t *testing.T) {
	// GIVEN a 100ms window under sustained load
	rec := &recordingRenderer{}
	th := NewThrottler(100*time.Millisecond, rec)
	defer th.Close()

	// WHEN snapshots arrive every 10ms for ~350ms
	for i := 1; i <= 35; i++ {
		th.Offer(snapWithDetections(i))
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	// THEN the render count matches the window budget, not the offer count
	got := len(rec.rendered())
	if got > 7 {
		t.Errorf("renders: got %d from 35 offers, want at most one per window", got)
	}
	if got == 0 {
		t.Error("expected at least one render")
	}

	// AND the final render carries the newest snapshot seen at its boundary
	snaps := rec.rendered()
	last := snaps[len(snaps)-1].AI.DetectionCount
	if last != 35 {
		t.Errorf("final render: got detections=%d, want 35", last)
	}
}

func TestThrottler_CloseStopsDeferredRender(t *testing.T) {
	// GIVEN a pending deferred render
	rec := &recordingRenderer{}
	th := NewThrottler(100*time.Millisecond, rec)
	th.Offer(snapWithDetections(1))

	// WHEN the throttler closes before the boundary
	th.Close()
	time.Sleep(150 * time.Millisecond)

	// THEN the deferred render never fires
	if got := len(rec.rendered()); got != 0 {
		t.Errorf("renders after Close: got %d, want 0", got)
	}
}
