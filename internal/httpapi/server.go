// Package httpapi exposes the engine over a small JSON HTTP API for the grid
// front end.
//
// Routes:
//
//	POST /api/run             one-shot engine.Run of the posted Request
//	GET  /api/grids/{key}     stored grid config
//	PUT  /api/grids/{key}     store a grid config
//	POST /api/live/{grid}     submit a Request to the grid's recompute scheduler
//	GET  /api/live/{grid}     latest result; ?after=N waits for a newer generation
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gridengine/internal/config"
	"gridengine/internal/engine"
	"gridengine/internal/recompute"
	"gridengine/internal/storage"
	"gridengine/pkg/records"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 64 << 20

// Config controls server startup.
type Config struct {
	Addr string
	// Debounce is the recompute window for live grids; zero uses the
	// grid's runtime.debounce_ms.
	Debounce time.Duration
	// Wait bounds how long GET /api/live blocks.
	Wait time.Duration
}

// Server routes API calls to the engine, a config store and one recompute
// scheduler per live grid.
type Server struct {
	cfg   Config
	mux   *http.ServeMux
	store storage.Store
	run   recompute.Func

	mu   sync.Mutex
	live map[string]*liveGrid
}

// NewServer constructs a Server. A nil store disables the /api/grids routes.
func NewServer(cfg Config, store storage.Store) *Server {
	if cfg.Wait <= 0 {
		cfg.Wait = 30 * time.Second
	}
	s := &Server{
		cfg:   cfg,
		mux:   http.NewServeMux(),
		store: store,
		run:   engine.Run,
		live:  map[string]*liveGrid{},
	}
	s.routes()
	return s
}

// Handler returns the API routes, for mounting or httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is done, then shuts down gracefully and
// closes every live scheduler.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutCtx)
	s.Close()
	return err
}

// Close stops every live scheduler.
func (s *Server) Close() {
	s.mu.Lock()
	grids := s.live
	s.live = map[string]*liveGrid{}
	s.mu.Unlock()
	for _, g := range grids {
		g.sched.Close()
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/run", s.handleRun)
	s.mux.HandleFunc("GET /api/grids/{key}", s.handleLoadGrid)
	s.mux.HandleFunc("PUT /api/grids/{key}", s.handleSaveGrid)
	s.mux.HandleFunc("POST /api/live/{grid}", s.handleSubmit)
	s.mux.HandleFunc("GET /api/live/{grid}", s.handleLatest)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := s.run(r.Context(), req)
	if err != nil {
		http.Error(w, "run failed: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLoadGrid(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no config store configured", http.StatusNotImplemented)
		return
	}
	g, err := storage.LoadGrid(r.Context(), s.store, r.PathValue("key"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "grid not found", http.StatusNotFound)
	case err != nil:
		log.Printf("httpapi: load grid %q: %v", r.PathValue("key"), err)
		http.Error(w, "load failed", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, g)
	}
}

func (s *Server) handleSaveGrid(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no config store configured", http.StatusNotImplemented)
		return
	}
	g, err := config.Decode(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	issues := config.ValidateGrid(g)
	if config.HasErrors(issues) {
		writeJSON(w, http.StatusUnprocessableEntity, issues)
		return
	}
	if err := storage.SaveGrid(r.Context(), s.store, r.PathValue("key"), g); err != nil {
		log.Printf("httpapi: save grid %q: %v", r.PathValue("key"), err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// submitResponse is returned by POST /api/live/{grid}.
type submitResponse struct {
	Generation uint64 `json:"generation"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	name := r.PathValue("grid")
	if req.Config.Grid == "" {
		req.Config.Grid = name
	}
	gen := s.liveGrid(name, req.Config.Runtime.DebounceMS).sched.Submit(req)
	writeJSON(w, http.StatusAccepted, submitResponse{Generation: gen})
}

// liveResponse is returned by GET /api/live/{grid}.
type liveResponse struct {
	Generation uint64         `json:"generation"`
	Latest     uint64         `json:"latest"`
	Result     *engine.Result `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	g := s.live[r.PathValue("grid")]
	s.mu.Unlock()
	if g == nil {
		http.Error(w, "grid is not live", http.StatusNotFound)
		return
	}
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "after must be a generation number", http.StatusBadRequest)
			return
		}
		after = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Wait)
	defer cancel()
	out, ok := g.wait(ctx, after)
	resp := liveResponse{Latest: g.sched.Latest()}
	if !ok {
		writeJSON(w, http.StatusNoContent, resp)
		return
	}
	resp.Generation = out.Generation
	if out.Err != nil {
		resp.Error = out.Err.Error()
	} else {
		resp.Result = &out.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) liveGrid(name string, debounceMS int) *liveGrid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.live[name]; ok {
		return g
	}
	d := s.cfg.Debounce
	if d <= 0 {
		d = time.Duration(debounceMS) * time.Millisecond
	}
	g := newLiveGrid(recompute.New(s.run, d))
	s.live[name] = g
	return g
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (engine.Request, bool) {
	req := engine.Request{Config: config.Default()}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	var raw struct {
		Input  json.RawMessage `json:"input"`
		Config json.RawMessage `json:"config"`
		Filter json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(w, "decode request: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	if len(raw.Input) > 0 {
		err := json.Unmarshal(raw.Input, &req.Input)
		if req.Input, err = records.OrEmpty("httpapi", req.Input, err); err != nil {
			http.Error(w, "decode input: "+err.Error(), http.StatusBadRequest)
			return req, false
		}
	}
	if len(raw.Config) > 0 {
		if req.Config, err = config.Unmarshal(raw.Config); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return req, false
		}
	}
	if len(raw.Filter) > 0 {
		if err := json.Unmarshal(raw.Filter, &req.Filter); err != nil {
			http.Error(w, "decode filter: "+err.Error(), http.StatusBadRequest)
			return req, false
		}
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusNoContent {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}
