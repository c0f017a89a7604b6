package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raghavbatra/bazaario-backend/pkg/logger"
)

// Pinger is anything that can report its own health.
type Pinger interface {
	Ping(context.Context) error
}

// Server exposes /healthz and /metrics for worker processes.
type Server struct {
	srv     *http.Server
	logg    *logger.Logger
	pingers []Pinger
}

// New builds the ops HTTP server on the given port.
func New(port string, logg *logger.Logger, pingers ...Pinger) *Server {
	s := &Server{logg: logg, pingers: pingers}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.logg != nil {
		s.logg.Info(ctx, "ops server listening on "+s.srv.Addr)
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	for _, p := range s.pingers {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "health check failed", err)
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
