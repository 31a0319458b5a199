// Package pacer provides a fixed-interval gate used to space out calls to
// rate-limited upstreams.
package pacer

import (
	"context"
	"sync"
	"time"
)

// Gate lets one caller through per interval. The first Wait passes
// immediately; subsequent calls block until the interval since the last
// pass has elapsed. Safe for concurrent use.
type Gate struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewGate creates a gate with the given interval. A non-positive interval
// yields a gate that never blocks.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Wait blocks until the gate opens or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	if g.interval <= 0 {
		return ctx.Err()
	}

	g.mu.Lock()
	now := time.Now()
	wait := g.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	g.next = now.Add(wait + g.interval)
	g.mu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interval returns the configured interval.
func (g *Gate) Interval() time.Duration { return g.interval }
