package recompute

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gridengine/internal/config"
	"gridengine/internal/engine"
	"gridengine/internal/filter"
	"gridengine/pkg/records"
)

func request(search string) engine.Request {
	return engine.Request{
		Input:  records.FromRows([]records.Record{{"team": "A", "sales": 1.0}}),
		Config: config.Default(),
		Filter: filter.State{Search: search},
	}
}

func receive(t *testing.T, s *Scheduler) Output {
	t.Helper()
	select {
	case out, ok := <-s.Results():
		if !ok {
			t.Fatalf("results channel closed")
		}
		return out
	case <-time.After(2 * time.Second):
		t.Fatalf("no result within 2s")
	}
	return Output{}
}

/*
TestSubmit_BurstRunsOnce submits three different requests inside one
debounce window and expects a single run, for the last generation.
*/
func TestSubmit_BurstRunsOnce(t *testing.T) {
	var calls atomic.Int32
	var lastSearch atomic.Value
	fn := func(ctx context.Context, req engine.Request) (engine.Result, error) {
		calls.Add(1)
		lastSearch.Store(req.Filter.Search)
		return engine.Result{SourceRows: 1}, nil
	}
	s := New(fn, 50*time.Millisecond)
	defer s.Close()

	s.Submit(request("a"))
	s.Submit(request("ab"))
	gen := s.Submit(request("abc"))
	if gen != 3 || s.Latest() != 3 {
		t.Fatalf("generation = %d latest = %d, want 3", gen, s.Latest())
	}

	out := receive(t, s)
	if out.Generation != 3 || out.Err != nil || out.Result.SourceRows != 1 {
		t.Fatalf("output = %#v", out)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fn called %d times, want 1", n)
	}
	if got := lastSearch.Load(); got != "abc" {
		t.Fatalf("ran with search %v, want abc", got)
	}
}

func TestSubmit_IdenticalSnapshotCoalesces(t *testing.T) {
	s := New(func(context.Context, engine.Request) (engine.Result, error) {
		return engine.Result{}, nil
	}, time.Hour)
	defer s.Close()

	g1 := s.Submit(request("x"))
	g2 := s.Submit(request("x"))
	g3 := s.Submit(request("y"))
	if g1 != 1 || g2 != 1 || g3 != 2 {
		t.Fatalf("generations = %d, %d, %d; want 1, 1, 2", g1, g2, g3)
	}
}

func TestSubmit_IdenticalSnapshotRerunsAfterFailure(t *testing.T) {
	var calls atomic.Int32
	s := New(func(context.Context, engine.Request) (engine.Result, error) {
		if calls.Add(1) == 1 {
			return engine.Result{}, errors.New("store unavailable")
		}
		return engine.Result{SourceRows: 1}, nil
	}, 0)
	defer s.Close()

	s.Submit(request("x"))
	if out := receive(t, s); out.Generation != 1 || out.Err == nil {
		t.Fatalf("first output = %#v, want a failure", out)
	}
	if g := s.Submit(request("x")); g != 2 {
		t.Fatalf("resubmit generation = %d, want 2", g)
	}
	if out := receive(t, s); out.Generation != 2 || out.Err != nil || out.Result.SourceRows != 1 {
		t.Fatalf("second output = %#v", out)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("fn called %d times, want 2", n)
	}
}

/*
TestSubmit_CancelsInFlight starts a slow computation, supersedes it and
checks that the slow run sees its context cancelled and that only the newer
generation is published.
*/
func TestSubmit_CancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	fn := func(ctx context.Context, req engine.Request) (engine.Result, error) {
		if req.Filter.Search == "slow" {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return engine.Result{SourceRows: -1}, ctx.Err()
		}
		return engine.Result{SourceRows: 7}, nil
	}
	s := New(fn, 0)
	defer s.Close()

	s.Submit(request("slow"))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow computation never started")
	}
	s.Submit(request("fast"))

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded computation was not cancelled")
	}
	out := receive(t, s)
	if out.Generation != 2 || out.Result.SourceRows != 7 {
		t.Fatalf("output = %#v, want generation 2 with 7 rows", out)
	}
}

func TestScheduler_RunsEngine(t *testing.T) {
	s := New(engine.Run, 0)
	defer s.Close()

	req := request("")
	req.Config.Pivot.Enabled = true
	req.Config.Pivot.Rows = []string{"team"}
	req.Config.Pivot.Values = []config.Value{{Field: "sales", Aggregation: "sum"}}
	s.Submit(req)

	out := receive(t, s)
	if out.Err != nil || !out.Result.IsPivot || len(out.Result.Rows) != 1 {
		t.Fatalf("output = %#v", out)
	}
}

func TestClose_ClosesResultsAndRejectsSubmit(t *testing.T) {
	s := New(func(context.Context, engine.Request) (engine.Result, error) {
		return engine.Result{}, nil
	}, time.Hour)
	s.Submit(request("pending"))
	s.Close()
	s.Close()

	if _, ok := <-s.Results(); ok {
		t.Fatalf("results channel still open after Close")
	}
	if g := s.Submit(request("late")); g != 0 {
		t.Fatalf("Submit after Close = %d, want 0", g)
	}
}
