// Package web provides the daemon's HTTP status surface: health and
// readiness, metrics, the exported ICS feed and the last run report.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"livesync/internal/config"
	"livesync/internal/engine"
	appLog "livesync/internal/log"
	"livesync/internal/metrics"
)

// Server exposes the daemon's status endpoints.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	// Last run report, written by the scheduler goroutine.
	reportMu   sync.RWMutex
	lastReport *engine.Report
	lastRunAt  time.Time
	lastErr    error
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// SetReport records the outcome of the latest run for /api/status.
func (s *Server) SetReport(report *engine.Report, err error) {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	s.lastReport = report
	s.lastRunAt = time.Now()
	s.lastErr = err
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/feed.ics", s.handleFeed)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type statusResponse struct {
	Outcome     string    `json:"outcome"`
	Events      int       `json:"events"`
	Failures    []string  `json:"failures,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	RanAt       time.Time `json:"ranAt"`
	Error       string    `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.reportMu.RLock()
	report, ranAt, lastErr := s.lastReport, s.lastRunAt, s.lastErr
	s.reportMu.RUnlock()

	if report == nil && lastErr == nil {
		writeJSON(w, http.StatusOK, statusResponse{Outcome: "pending"})
		return
	}

	resp := statusResponse{RanAt: ranAt}
	if lastErr != nil {
		resp.Outcome = "failed"
		resp.Error = lastErr.Error()
	}
	if report != nil {
		resp.Outcome = report.Outcome
		resp.Events = report.Events
		resp.Fingerprint = report.Fingerprint
		for _, f := range report.Failures {
			resp.Failures = append(resp.Failures, f.String())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFeed serves the most recently exported ICS feed.
func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	path := s.cfg.Publish.FeedPath
	if path == "" {
		http.Error(w, "feed export not configured", http.StatusNotFound)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "feed not yet exported", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("writing JSON response failed", err)
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable for liveness probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="livesync", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
