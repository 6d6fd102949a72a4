// Package recompute schedules engine runs for a grid whose inputs change
// in bursts (typing in a search box, dragging a pivot field).
//
// Every Submit gets a generation number. Submissions inside the debounce
// window collapse into one run, a running computation is cancelled as soon
// as a newer generation arrives, and only the result of the latest
// generation is ever published. A submission identical to the previous one
// (same JSON snapshot) is dropped and reuses its generation, unless the
// previous run failed.
package recompute

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"gridengine/internal/engine"
	"gridengine/internal/metrics"
)

// Scheduler outcomes reported to metrics.
const (
	OutcomeDelivered  = "delivered"
	OutcomeSuperseded = "superseded"
	OutcomeCoalesced  = "coalesced"
	OutcomeFailed     = "failed"
)

// Func computes one result. engine.Run is the usual implementation.
type Func func(ctx context.Context, req engine.Request) (engine.Result, error)

// Output is a published result tagged with the generation that produced it.
type Output struct {
	Generation uint64
	Result     engine.Result
	Err        error
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	fn       Func
	debounce time.Duration
	out      chan Output

	mu      sync.Mutex
	gen     uint64 // latest accepted generation
	pending *engine.Request
	timer   *time.Timer
	cancel  context.CancelFunc // running computation, if any
	lastFP  uint64
	hasFP   bool
	closed  bool
	wg      sync.WaitGroup
}

// New returns a Scheduler running fn at most once per debounce window. A
// non-positive debounce runs every accepted submission right away.
func New(fn Func, debounce time.Duration) *Scheduler {
	if debounce < 0 {
		debounce = 0
	}
	return &Scheduler{fn: fn, debounce: debounce, out: make(chan Output, 1)}
}

// Results publishes the latest-generation outputs. At most one output is
// buffered; an output made stale by a newer Submit is withdrawn. The
// channel is closed by Close.
func (s *Scheduler) Results() <-chan Output { return s.out }

// Latest returns the most recent generation handed out by Submit.
func (s *Scheduler) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Submit schedules req and returns its generation. Submitting after Close
// returns 0.
func (s *Scheduler) Submit(req engine.Request) uint64 {
	fp, fpOK := fingerprint(req)
	grid := gridName(req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	if fpOK && s.hasFP && fp == s.lastFP {
		metrics.RecordRecompute(grid, OutcomeCoalesced)
		return s.gen
	}
	s.lastFP, s.hasFP = fp, fpOK

	s.gen++
	if s.pending != nil {
		metrics.RecordRecompute(gridName(*s.pending), OutcomeSuperseded)
	}
	s.pending = &req
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	select {
	case <-s.out:
		metrics.RecordRecompute(grid, OutcomeSuperseded)
	default:
	}

	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.fire)
	} else {
		s.timer.Reset(s.debounce)
	}
	return s.gen
}

// fire starts the pending computation when the debounce window closes.
func (s *Scheduler) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending == nil {
		return
	}
	req, gen := *s.pending, s.gen
	s.pending = nil

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, cancel, gen, req)
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, gen uint64, req engine.Request) {
	defer s.wg.Done()
	defer cancel()

	res, err := s.fn(ctx, req)
	grid := gridName(req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || errors.Is(err, context.Canceled) {
		metrics.RecordRecompute(grid, OutcomeSuperseded)
		return
	}
	s.cancel = nil
	if err != nil {
		log.Printf("recompute: grid=%s generation=%d failed: %v", grid, gen, err)
		metrics.RecordRecompute(grid, OutcomeFailed)
		// A failed snapshot must run again when resubmitted.
		s.hasFP = false
	} else {
		metrics.RecordRecompute(grid, OutcomeDelivered)
	}
	// The buffer only ever holds an older generation here; replace it.
	select {
	case <-s.out:
	default:
	}
	s.out <- Output{Generation: gen, Result: res, Err: err}
}

// Close stops the timer, cancels any running computation, waits for it and
// closes the Results channel.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.pending = nil
	s.mu.Unlock()

	s.wg.Wait()
	close(s.out)
}

// fingerprint hashes the JSON snapshot of req.
func fingerprint(req engine.Request) (uint64, bool) {
	b, err := json.Marshal(req)
	if err != nil {
		return 0, false
	}
	return xxh3.Hash(b), true
}

func gridName(req engine.Request) string {
	if req.Config.Grid == "" {
		return "default"
	}
	return req.Config.Grid
}
