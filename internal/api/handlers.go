package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/pulsegen/pulse/internal/config"
	"github.com/pulsegen/pulse/internal/engine"
)

// statusResponse is the body of GET /api/run/status.
type statusResponse struct {
	State       engine.State       `json:"state"`
	RunID       string             `json:"runId,omitempty"`
	Config      *config.TestConfig `json:"config,omitempty"`
	ActiveConns int                `json:"activeConns"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var cfg config.TestConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}

	state := s.runner.State()
	if state == engine.StateRunning || state == engine.StatePaused {
		writeError(w, http.StatusConflict, "a test run is already in progress")
		return
	}

	s.log.reset()
	if err := s.runner.Start(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSONStatus(w, http.StatusAccepted, statusResponse{State: s.runner.State(), RunID: cfg.RunID, Config: &cfg})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Pause(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, statusResponse{State: s.runner.State()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Resume(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, statusResponse{State: s.runner.State()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, statusResponse{State: s.runner.State()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.reset()
	writeJSON(w, statusResponse{State: s.runner.State()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:       s.runner.State(),
		ActiveConns: s.runner.ActiveConns(),
	}
	if cfg := s.runner.Config(); cfg != nil {
		resp.RunID = cfg.RunID
		resp.Config = cfg
	}
	writeJSON(w, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.runner.Metrics())
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.runner.Series())
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.runner.Distribution())
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, s.log.tail(limit))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// resultLog keeps a bounded tail of recent results for the API. It is
// the log sink from the engine's point of view: a passive observer fed
// by the result stream.
type resultLog struct {
	mu      sync.Mutex
	entries []engine.Result
	head    int
	count   int
	cap     int
}

func newResultLog(capacity int) *resultLog {
	return &resultLog{
		entries: make([]engine.Result, capacity),
		cap:     capacity,
	}
}

func (l *resultLog) append(res engine.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.head] = res
	l.head = (l.head + 1) % l.cap
	if l.count < l.cap {
		l.count++
	}
}

// tail returns up to n of the most recent results, oldest first.
func (l *resultLog) tail(n int) []engine.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > l.count {
		n = l.count
	}
	out := make([]engine.Result, 0, n)
	start := l.head - n
	if start < 0 {
		start += l.cap
	}
	for i := 0; i < n; i++ {
		out = append(out, l.entries[(start+i)%l.cap])
	}
	return out
}

func (l *resultLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.head = 0
	l.count = 0
}
