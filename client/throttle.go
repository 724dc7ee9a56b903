package client

import (
	"sync"
	"time"

	"github.com/edgeplane/edgeplane/sim"
)

// Renderer consumes throttled snapshots.
type Renderer interface {
	Render(snap sim.SystemState)
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(snap sim.SystemState)

// Render calls f.
func (f RenderFunc) Render(snap sim.SystemState) { f(snap) }

// Throttler limits rendering to at most one call per window regardless of
// arrival rate. Renders happen at window boundaries with the latest
// snapshot seen, never a stale one, and Offer never blocks, so a slow
// renderer can never starve message receipt.
type Throttler struct {
	window   time.Duration
	renderer Renderer

	mu        sync.Mutex
	latest    sim.SystemState
	havePend  bool
	lastFlush time.Time
	timer     *time.Timer
	now       func() time.Time
	closed    bool
}

// NewThrottler creates a Throttler with the given render window. The first
// window opens at creation.
func NewThrottler(window time.Duration, r Renderer) *Throttler {
	return &Throttler{
		window:    window,
		renderer:  r,
		lastFlush: time.Now(),
		now:       time.Now,
	}
}

// Offer records a snapshot. If the window since the last render has already
// elapsed, it renders immediately; otherwise the snapshot replaces any
// pending one and a single deferred render fires at the window boundary.
func (t *Throttler) Offer(snap sim.SystemState) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	now := t.now()
	wait := t.window - now.Sub(t.lastFlush)
	if wait <= 0 {
		t.lastFlush = now
		t.havePend = false
		t.mu.Unlock()
		t.renderer.Render(snap)
		return
	}

	t.latest = snap
	if !t.havePend {
		t.havePend = true
		t.timer = time.AfterFunc(wait, t.flush)
	}
	t.mu.Unlock()
}

// flush renders the pending latest snapshot at the window boundary.
func (t *Throttler) flush() {
	t.mu.Lock()
	if t.closed || !t.havePend {
		t.mu.Unlock()
		return
	}
	snap := t.latest
	t.havePend = false
	t.lastFlush = t.now()
	t.mu.Unlock()
	t.renderer.Render(snap)
}

// Close stops any deferred render.
func (t *Throttler) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
