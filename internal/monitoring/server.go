package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ducminhle1904/intraday-risk-bot/internal/logger"
)

// Controls is the operator surface exposed by the ops server
type Controls interface {
	Status() interface{}
	Pause()
	Resume()
}

// ServerConfig holds ops server configuration
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig binds to localhost only
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1:9090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server exposes /metrics, /health, /status and the pause controls
type Server struct {
	router   *mux.Router
	server   *http.Server
	health   *HealthChecker
	controls Controls
	logger   *logger.Logger
}

// NewServer builds the router; call Start to listen
func NewServer(config ServerConfig, health *HealthChecker, controls Controls, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		router:   mux.NewRouter(),
		health:   health,
		controls: controls,
		logger:   log,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", MetricsHandler()).Methods(http.MethodGet)
	s.router.Handle("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/pause", s.handlePause).Methods(http.MethodPost)
	s.router.HandleFunc("/resume", s.handleResume).Methods(http.MethodPost)
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background
func (s *Server) Start() {
	go func() {
		s.logger.Info("Ops server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.LogError("ops server", err)
		}
	}()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop ops server: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controls.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.controls.Pause()
	s.logger.Warning("Trading paused by operator (%s)", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.controls.Resume()
	s.logger.Info("Trading resumed by operator (%s)", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
