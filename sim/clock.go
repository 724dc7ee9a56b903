package sim

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Clock fires the periodic simulation tick. There is exactly one Clock per
// process; it is the only unconditional writer, so every session observes a
// globally consistent snapshot order.
type Clock struct {
	interval time.Duration
	tick     func()
}

// NewClock creates a Clock that invokes tick once per interval. The tick
// callback must be fast and non-blocking (it hands the work to the engine
// loop); a slow callback would delay subsequent ticks.
func NewClock(interval time.Duration, tick func()) *Clock {
	return &Clock{interval: interval, tick: tick}
}

// Run fires ticks until ctx is cancelled.
func (c *Clock) Run(ctx context.Context) {
	logrus.Infof("simulation clock started, interval=%v", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("simulation clock stopped")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}
