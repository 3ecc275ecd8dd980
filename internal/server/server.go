package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/gorilla/mux"

	"demosaic/internal/pipeline"
	"demosaic/internal/storage"
)

// Server exposes run status and the catalog over HTTP.
type Server struct {
	addr     string
	store    *storage.Store
	pipeline *pipeline.Pipeline
	log      *slog.Logger
	server   *http.Server
	started  time.Time
}

// NewServer creates a status server bound to addr.
func NewServer(addr string, store *storage.Store, pipe *pipeline.Pipeline, log *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		store:    store,
		pipeline: pipe,
		log:      log,
		started:  time.Now(),
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	r := mux.NewRouter()
	s.setupRoutes(r)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/api/runs", s.handleRuns).Methods("GET")
	r.HandleFunc("/api/runs/{id}/images", s.handleRunImages).Methods("GET")
	r.HandleFunc("/api/events", s.handleEvents).Methods("GET")
}

// Serve constructs a Server and runs it, the one-call form the CLI uses.
func Serve(ctx context.Context, addr string, store *storage.Store, pipe *pipeline.Pipeline, log *slog.Logger) error {
	return NewServer(addr, store, pipe, log).Start(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"uptime_sec": int(time.Since(s.started).Seconds()),
	}
	if runs, err := s.store.RecentRuns(1); err == nil && len(runs) > 0 {
		resp["last_run"] = runs[0]
	}
	writeJSON(w, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentRuns(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (s *Server) handleRunImages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	imgs, err := s.store.RunImages(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, imgs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	resCh, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()

	// Flush a comment line so clients see headers before the first event.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			event := map[string]any{
				"job_id": res.Job.ID,
				"type":   string(res.Job.Type),
				"status": "completed",
				"meta":   res.Meta,
			}
			if res.Error != nil {
				event["status"] = "failed"
				event["error"] = res.Error.Error()
			}
			payload, _ := json.Marshal(event)
			_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
