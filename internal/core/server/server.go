package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/config"
	middleware "github.com/mohammed-shakir/gapminder-dash/internal/core/middleware"
	"github.com/mohammed-shakir/gapminder-dash/internal/health"
)

// Routes is what the server needs besides the dashboard itself.
type Routes struct {
	Ready   health.ReadinessReporter
	Metrics http.Handler // nil disables /metrics
	Mount   func(chi.Router)
}

// NewRouter builds the chi router with the shared middleware chain and probes.
func NewRouter(logger *slog.Logger, rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())

	r.Get("/healthz", health.Liveness())
	if rt.Ready != nil {
		r.Get("/readyz", health.Readiness(rt.Ready))
	}
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}
	if rt.Mount != nil {
		rt.Mount(r)
	}
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
