// Package server provides the HTTP JSON API
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"shopflow/internal/config"
	"shopflow/internal/health"
	"shopflow/internal/marketing"
	"shopflow/internal/realtime"
	"shopflow/internal/repository"
	"shopflow/internal/workshop"
)

// Deps are the services the handlers call
type Deps struct {
	Repos     *repository.Repositories
	Workshop  *workshop.Service
	Marketing *marketing.Service
	Hub       *realtime.Hub
	Monitor   *health.Monitor
	// Files serves stored attachments under the storage public prefix
	Files http.Handler
}

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	repos     *repository.Repositories
	workshop  *workshop.Service
	marketing *marketing.Service
	hub       *realtime.Hub
	monitor   *health.Monitor
	files     http.Handler
	router    *chi.Mux
	http      *http.Server
}

// New wires the router and the underlying http.Server
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config:    cfg,
		repos:     deps.Repos,
		workshop:  deps.Workshop,
		marketing: deps.Marketing,
		hub:       deps.Hub,
		monitor:   deps.Monitor,
		files:     deps.Files,
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	// No WriteTimeout: SSE responses are long-lived
	s.http = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Run serves until ctx is cancelled or the process gets SIGINT/SIGTERM
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.WithField("address", s.http.Addr).Info("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	return s.shutdown()
}

// shutdown drains in-flight requests, then force-closes what is left
func (s *Server) shutdown() error {
	log.Info("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if s.hub != nil {
		s.hub.Close()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Graceful shutdown timed out")
		if err := s.http.Close(); err != nil {
			return fmt.Errorf("close server: %w", err)
		}
	}
	log.Info("HTTP server stopped")
	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RealIP, middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(apiHeaders)
	s.router.Use(middleware.Compress(5, "application/json"))
}

// apiHeaders locks a JSON API down: nothing may be framed, sniffed or scripted
func apiHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self' data:; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// Router exposes the handler tree to tests
func (s *Server) Router() http.Handler {
	return s.router
}
