// Package health exposes liveness and metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Probe reports the application liveness.
type Probe interface {
	Status() string
	Alive() bool
}

type status struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

// Server serves /healthz and /metrics.
type Server struct {
	logger *zap.Logger
	srv    *http.Server
}

func NewServer(addr string, probe Probe, metrics http.Handler, logger *zap.Logger) *Server {
	logger = logger.Named("health")
	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := status{Status: "ok", State: probe.Status()}
		code := http.StatusOK
		if !probe.Alive() {
			body.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Debug("write health response", zap.Error(err))
		}
	})
	if metrics != nil {
		router.Method(http.MethodGet, "/metrics", metrics)
	}

	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("health server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
