// Package api provides a minimal HTTP status surface over the routing and
// session planes. Spec §1 places the full HTTP API and callback hooks out of
// scope as an external collaborator; this package only exposes read-only
// stream/session counts for operators, not stream control or SDP signaling.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/srs-core/mediacore/pkg/logger"
	"github.com/srs-core/mediacore/pkg/rtc"
	"github.com/srs-core/mediacore/pkg/source"
)

// Server exposes a read-only status surface (active stream URLs, session
// count) over the SourceManager/SessionManager, kept deliberately small: the
// full HTTP control API (publish/play signaling, stream control, hooks) is an
// external collaborator per spec §1 and is not modeled here.
type Server struct {
	sources  *source.SourceManager
	sessions *rtc.SessionManager
	logger   *logger.Logger

	httpServer *http.Server
}

// StreamsResponse lists the URLs currently registered with the source
// manager.
type StreamsResponse struct {
	Streams []string `json:"streams"`
}

// SessionsResponse reports the number of live RTC sessions.
type SessionsResponse struct {
	Count int `json:"count"`
}

// NewServer constructs a status server over the given managers.
func NewServer(sources *source.SourceManager, sessions *rtc.SessionManager, log *logger.Logger) *Server {
	return &Server{
		sources:  sources,
		sessions: sessions,
		logger:   log.With("component", "api"),
	}
}

// Start starts the HTTP server in the background, returning once it has
// either bound successfully or failed immediately.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/streams", s.handleStreams)
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withCORS(s.withLogging(mux)),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("starting HTTP status server", "address", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP status server error", "error", err)
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping HTTP status server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StreamsResponse{Streams: s.sources.URLs()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := SessionsResponse{Count: s.sessions.Count()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// withCORS adds permissive CORS headers, matching the teacher's policy for a
// status endpoint consumed by a browser-side dashboard.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging logs each request's method, path, status and duration.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
