package httpapi

import (
	"context"
	"sync"

	"gridengine/internal/recompute"
)

// liveGrid keeps the latest published output of one scheduler so any number
// of readers can wait for it.
type liveGrid struct {
	sched *recompute.Scheduler

	mu      sync.Mutex
	last    recompute.Output
	has     bool
	changed chan struct{} // closed and replaced on every new output
}

func newLiveGrid(s *recompute.Scheduler) *liveGrid {
	g := &liveGrid{sched: s, changed: make(chan struct{})}
	go g.drain()
	return g
}

func (g *liveGrid) drain() {
	for out := range g.sched.Results() {
		g.mu.Lock()
		g.last, g.has = out, true
		close(g.changed)
		g.changed = make(chan struct{})
		g.mu.Unlock()
	}
}

// wait returns the latest output once its generation is newer than after,
// or false when ctx ends first.
func (g *liveGrid) wait(ctx context.Context, after uint64) (recompute.Output, bool) {
	for {
		g.mu.Lock()
		last, has, ch := g.last, g.has, g.changed
		g.mu.Unlock()
		if has && last.Generation > after {
			return last, true
		}
		select {
		case <-ctx.Done():
			return recompute.Output{}, false
		case <-ch:
		}
	}
}
