// Package server exposes the assistant's HTTP surface: health probes,
// Prometheus metrics, listening and reset controls, and the websocket results
// feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/interviewpilot/internal/health"
	"github.com/MrWong99/interviewpilot/internal/observe"
)

// shutdownTimeout bounds graceful shutdown once the run context is done.
const shutdownTimeout = 5 * time.Second

// Controller is the part of the application the control endpoints drive.
type Controller interface {
	Listening() bool
	SetListening(ctx context.Context, on bool) error
	ToggleListening(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithHealth mounts /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithFeed mounts h at GET /results.
func WithFeed(h http.Handler) Option {
	return func(s *Server) { s.feed = h }
}

// WithMetrics sets the metrics recorder used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler replaces the /metrics handler. Defaults to
// [promhttp.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// Server is the HTTP front end.
type Server struct {
	addr           string
	ctrl           Controller
	health         *health.Handler
	feed           http.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler

	handler http.Handler
}

// New builds a Server for addr. ctrl must not be nil.
func New(addr string, ctrl Controller, opts ...Option) *Server {
	s := &Server{addr: addr, ctrl: ctrl}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}
	s.handler = observe.Middleware(s.metrics)(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.Handle("GET /metrics", s.metricsHandler)

	mux.HandleFunc("GET /control/state", s.handleState)
	mux.HandleFunc("POST /control/listen", s.handleListen(true))
	mux.HandleFunc("POST /control/pause", s.handleListen(false))
	mux.HandleFunc("POST /control/toggle", s.handleToggle)
	mux.HandleFunc("POST /control/reset", s.handleReset)

	if s.feed != nil {
		mux.Handle("GET /results", s.feed)
	}
	return mux
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server: graceful shutdown failed", "err", err)
		_ = srv.Close()
	}
	return nil
}

// ── Handlers ─────────────────────────────────────────────────────────────────

type stateResponse struct {
	Listening bool   `json:"listening"`
	Action    string `json:"action,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{Listening: s.ctrl.Listening()})
}

func (s *Server) handleListen(on bool) http.HandlerFunc {
	action := "pause"
	if on {
		action = "listen"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.SetListening(r.Context(), on); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stateResponse{Listening: on, Action: action})
	}
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	on, err := s.ctrl.ToggleListening(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Listening: on, Action: "toggle"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Listening: s.ctrl.Listening(), Action: "reset"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	slog.Warn("server: control request failed", "err", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
