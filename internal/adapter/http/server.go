package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cwygoda/transcriber/internal/domain"
)

// ProgressSource reports the live run summary.
type ProgressSource interface {
	Live() domain.Summary
}

// StateSource answers per-entry and failure queries.
type StateSource interface {
	State(e domain.Entry) domain.EntryState
	Failures() []domain.FailureRecord
	NewFailures() []domain.FailureRecord
}

// Server is the read-only HTTP view of a running batch.
type Server struct {
	progress ProgressSource
	state    StateSource
	started  time.Time
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(progress ProgressSource, state StateSource, addr string) *Server {
	s := &Server{
		progress: progress,
		state:    state,
		started:  time.Now(),
		mux:      http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /progress", s.handleProgress)
	s.mux.HandleFunc("GET /failures", s.handleFailures)
	s.mux.HandleFunc("GET /entries/{id}", s.handleGetEntry)
}

// progressResponse is the JSON response for GET /progress.
type progressResponse struct {
	Total     int    `json:"total"`
	Skipped   int    `json:"skipped"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Invalid   int    `json:"invalid"`
	Remaining int    `json:"remaining"`
	Elapsed   string `json:"elapsed"`
}

// failureResponse is one failure log record.
type failureResponse struct {
	URL     string `json:"url"`
	EntryID string `json:"entry_id,omitempty"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// entryResponse is the JSON response for GET /entries/{id}.
type entryResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url,omitempty"`
	State string `json:"state"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sum := s.progress.Live()
	s.writeJSON(w, http.StatusOK, progressResponse{
		Total:     sum.Total,
		Skipped:   sum.Skipped,
		Succeeded: sum.Succeeded,
		Failed:    sum.Failed,
		Invalid:   sum.Invalid,
		Remaining: sum.Remaining,
		Elapsed:   time.Since(s.started).Truncate(time.Second).String(),
	})
}

// handleFailures lists failure records. ?scope=run limits the list to
// failures recorded since startup.
func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	var recs []domain.FailureRecord
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "all":
		recs = s.state.Failures()
	case "run":
		recs = s.state.NewFailures()
	default:
		s.writeError(w, http.StatusBadRequest, "scope must be all or run")
		return
	}

	out := make([]failureResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, failureResponse{
			URL:     rec.URL,
			EntryID: rec.EntryID,
			Reason:  string(rec.Reason),
			Detail:  rec.Detail,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleGetEntry reports the state of one entry. Completed logs may only
// know the url, so ?url= is matched too.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "invalid entry ID")
		return
	}
	e := domain.Entry{ID: id, URL: strings.TrimSpace(r.URL.Query().Get("url"))}
	s.writeJSON(w, http.StatusOK, entryResponse{
		ID:    e.ID,
		URL:   e.URL,
		State: string(s.state.State(e)),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
