// Package server wires the tracking and management surfaces, the metrics
// endpoint and the background dispatcher into one HTTP process.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkedz/outreach/internal/campaign"
	"github.com/mkedz/outreach/internal/config"
	"github.com/mkedz/outreach/internal/dispatch"
	"github.com/mkedz/outreach/internal/manage"
	"github.com/mkedz/outreach/internal/metrics"
	"github.com/mkedz/outreach/internal/sender"
	"github.com/mkedz/outreach/internal/track"
)

// Server is the outreach HTTP server plus its background dispatcher.
type Server struct {
	cfg        *config.Config
	registry   *campaign.Registry
	router     *chi.Mux
	httpServer *http.Server
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	startTime  time.Time
}

// New creates the server: campaign registry, sender, dispatcher and all
// HTTP routes.
func New(cfg *config.Config, reg *campaign.Registry, logger *slog.Logger) (*Server, error) {
	m := metrics.New()

	s := &Server{
		cfg:       cfg,
		registry:  reg,
		router:    chi.NewRouter(),
		metrics:   m,
		logger:    logger,
		startTime: time.Now(),
	}

	snd := sender.New(cfg.Templates.Dir, logger, m)
	s.dispatcher = dispatch.New(reg, snd, dispatch.DefaultConfig(), logger)

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Public tracking surface.
	track.NewHandler(s.registry, s.metrics, s.logger).RegisterRoutes(s.router)

	// Management surface, basic auth inside.
	mgmt, err := manage.NewHandler(s.registry, s.cfg.Secrets, s.logger)
	if err != nil {
		return err
	}
	mgmt.RegisterRoutes(s.router)

	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"campaigns": len(s.registry.All()),
	})
}

// Run starts the dispatcher and the HTTP server and blocks until a shutdown
// signal arrives or the listener fails. Shutdown order matters: the
// dispatcher stops first so no send is in flight while connections drain,
// and the campaign databases close last.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s.dispatcher.Start()

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.cfg.Server.ListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		s.logger.Error("server error", "error", runErr)
	}

	s.shutdown()
	return runErr
}

func (s *Server) shutdown() {
	s.logger.Info("shutting down")

	s.dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("failed to shut down HTTP server", "error", err)
	}

	s.registry.Close()
	s.logger.Info("shutdown complete")
}
