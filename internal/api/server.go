// Package api exposes run control and live metrics over HTTP so
// external consumers (dashboards, persistence, export) can observe a
// test run without the engine depending on them.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pulsegen/pulse/internal/engine"
)

// resultLogCap bounds the recent-results tail kept for GET /api/run/results.
const resultLogCap = 1000

// Server wraps a single Runner behind a JSON HTTP API.
type Server struct {
	runner *engine.Runner

	log *resultLog
}

// NewServer creates an API server around runner. It subscribes to the
// runner's result stream, so it must be constructed before the first
// Start.
func NewServer(runner *engine.Runner) *Server {
	s := &Server{
		runner: runner,
		log:    newResultLog(resultLogCap),
	}
	runner.OnResult(s.log.append)
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/run/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/run/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/api/run/resume", s.handleResume).Methods(http.MethodPost)
	r.HandleFunc("/api/run/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/api/run/reset", s.handleReset).Methods(http.MethodPost)

	r.HandleFunc("/api/run/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/run/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/api/run/series", s.handleSeries).Methods(http.MethodGet)
	r.HandleFunc("/api/run/distribution", s.handleDistribution).Methods(http.MethodGet)
	r.HandleFunc("/api/run/results", s.handleResults).Methods(http.MethodGet)

	r.Use(corsMiddleware)
	return r
}

// ListenAndServe runs the API on addr until the server fails.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.Router())
}

// corsMiddleware allows browser dashboards on other origins to poll
// the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
