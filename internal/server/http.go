// Package server exposes the Clarivox HTTP and websocket transport.
//
// One websocket connection corresponds to one recording session: the client
// streams transcription events in, the server streams staged correction
// progress and final text back. The plain-HTTP surface carries health
// probes, Prometheus metrics, and the learning-cache stats document.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clarivox/clarivox/internal/feedback"
	"github.com/clarivox/clarivox/internal/health"
	"github.com/clarivox/clarivox/internal/learn"
	"github.com/clarivox/clarivox/internal/observe"
	"github.com/clarivox/clarivox/internal/polish"
	"github.com/clarivox/clarivox/internal/polish/tone"
	"github.com/clarivox/clarivox/internal/segment"
)

// Deps are the collaborators the [Server] exposes over the wire.
type Deps struct {
	Pipeline    *polish.Pipeline
	Coordinator *feedback.Coordinator
	Cache       *learn.Cache
	Classifier  *segment.Classifier
	Health      *health.Handler
	Metrics     *observe.Metrics
	DefaultTone tone.Mode
	Logger      *slog.Logger
}

// Server serves the websocket session endpoint and the HTTP API.
type Server struct {
	httpServer  *http.Server
	pipeline    *polish.Pipeline
	coordinator *feedback.Coordinator
	cache       *learn.Cache
	metrics     *observe.Metrics
	defaultTone tone.Mode
	logger      *slog.Logger

	// classifier is swapped on config reload; sessions pick it up when they
	// connect.
	mu         sync.RWMutex
	classifier *segment.Classifier
}

// New creates a [Server] listening on addr once [Server.Start] is called.
func New(addr string, deps Deps) *Server {
	s := &Server{
		pipeline:    deps.Pipeline,
		coordinator: deps.Coordinator,
		cache:       deps.Cache,
		classifier:  deps.Classifier,
		metrics:     deps.Metrics,
		defaultTone: deps.DefaultTone,
		logger:      deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.defaultTone == "" {
		s.defaultTone = tone.ModeNeutral
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", promhttp.Handler())
	if deps.Health != nil {
		deps.Health.Register(mux)
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = observe.Middleware(s.metrics)(mux)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetClassifier replaces the silence classifier used by new sessions.
// Existing sessions keep the one they connected with.
func (s *Server) SetClassifier(c *segment.Classifier) {
	s.mu.Lock()
	s.classifier = c
	s.mu.Unlock()
}

func (s *Server) currentClassifier() *segment.Classifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classifier
}

// Start runs the HTTP server until it is shut down. Always returns a non-nil
// error; [http.ErrServerClosed] after a clean [Server.Shutdown].
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// StartTLS is [Server.Start] over TLS.
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logger.Info("server listening with TLS", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight requests
// up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// handleWS upgrades the connection and runs the session loop until the
// client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session terminated")

	ctx := r.Context()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
		defer s.metrics.ActiveSessions.Add(ctx, -1)
	}

	sess := newSession(conn, s)
	if err := sess.run(ctx); err != nil {
		s.logger.Info("session ended", slog.String("error", err.Error()))
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// statsResponse is the /stats document: cache contents plus per-tone
// accuracy scores.
type statsResponse struct {
	learn.Summary
	Scores map[tone.Mode]float64 `json:"scores"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	summary := s.cache.Summarize()
	resp := statsResponse{
		Summary: summary,
		Scores:  make(map[tone.Mode]float64, len(summary.Stats)),
	}
	for mode, st := range summary.Stats {
		resp.Scores[mode] = st.Score()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
