// Package web serves the attendance HTTP API: session summaries,
// reports, the FAQ chatbot and a live SSE feed of detections.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/classmark/classmark/internal/chatbot"
	"github.com/classmark/classmark/internal/metrics"
	"github.com/classmark/classmark/internal/roster"
	"github.com/classmark/classmark/internal/store"
)

// Config wires a Server.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string

	Store   store.Store
	Roster  *roster.Store
	Bot     *chatbot.Bot
	Metrics *metrics.Metrics
	Feed    *Feed

	Logger *zerolog.Logger
}

// Server is the attendance API server.
type Server struct {
	cfg        Config
	router     *chi.Mux
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer creates the server and mounts all routes.
func NewServer(cfg Config) *Server {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	s := &Server{
		cfg:    cfg,
		router: r,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute, // SSE connections stay open
			IdleTimeout:  60 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}/report", s.handleSessionReport)
		r.Get("/reports/{date}", s.handleDailyEvents)
		r.Post("/chat", s.handleChat)
		if s.cfg.Feed != nil {
			r.Get("/live", s.handleLive)
		}
	})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	return nil
}

// Router exposes the mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
