// Package server exposes the engine and hooks as HTTP webhooks.
//
//	POST /hooks/created    {"record_type","record_id"[,"case_lookup","artifact_lookup","dry_run"]}
//	POST /hooks/changed    {"record_type","record_id","changed":{...}[,"dry_run"]}
//	POST /hooks/deleting   {"record_type","record_id"}
//	POST /hooks/annotated  {"annotation_id"}
//	GET  /healthz
//	GET  /metrics
//
// Every handler runs synchronously and answers only after the store work
// for the request is done.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/artifacts/internal/config"
	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/hooks"
	"github.com/roach88/artifacts/internal/metrics"
)

// Pinger reports store health. Implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server routes webhook requests to the engine and hooks.
type Server struct {
	engine  *engine.Engine
	cleaner *hooks.Cleaner
	uploads *hooks.Uploads
	config  *config.Config
	metrics *metrics.Recorder
	health  Pinger
	logger  *slog.Logger
}

// Deps are the collaborators of a Server. All fields are required except
// Logger.
type Deps struct {
	Engine  *engine.Engine
	Cleaner *hooks.Cleaner
	Uploads *hooks.Uploads
	Config  *config.Config
	Metrics *metrics.Recorder
	Health  Pinger
	Logger  *slog.Logger
}

// New creates a Server.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  d.Engine,
		cleaner: d.Cleaner,
		uploads: d.Uploads,
		config:  d.Config,
		metrics: d.Metrics,
		health:  d.Health,
		logger:  logger.With("component", "server"),
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/hooks", func(r chi.Router) {
		r.Post("/created", s.handleCreated)
		r.Post("/changed", s.handleChanged)
		r.Post("/deleting", s.handleDeleting)
		r.Post("/annotated", s.handleAnnotated)
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
