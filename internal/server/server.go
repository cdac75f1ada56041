// Package server implements the A4 admin HTTP surface: a narrow chi
// router exposing operational control (scheduler start/stop/pause/resume,
// broker connect/disconnect, a manual position-sync trigger, host status)
// and the /ws upgrade endpoint, grounded on the teacher's
// internal/server/server.go middleware stack and narrowed to the
// operations spec.md §6 names (the teacher's surface additionally serves
// a SPA and dozens of portfolio/analytics/planning module routes that
// have no equivalent here).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/tradecore/bot/internal/domain"
	"github.com/tradecore/bot/internal/positionsync"
	"github.com/tradecore/bot/internal/scheduler"
	"github.com/tradecore/bot/internal/wshub"
)

// Config is the explicit set of collaborators the server routes against;
// no DI container, per the teacher's cmd/server/main.go wiring idiom.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool

	Broker       domain.BrokerClient
	Scheduler    *scheduler.Scheduler
	PositionSync *positionsync.Service
	Hub          *wshub.Hub

	AccountID int64
}

// Server wraps the HTTP server and router.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	broker       domain.BrokerClient
	scheduler    *scheduler.Scheduler
	positionSync *positionsync.Service
	hub          *wshub.Hub
	accountID    int64
	startedAt    time.Time
}

// New builds a Server and registers its routes; call Start to begin
// accepting connections.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		broker:       cfg.Broker,
		scheduler:    cfg.Scheduler,
		positionSync: cfg.PositionSync,
		hub:          cfg.Hub,
		accountID:    cfg.AccountID,
		startedAt:    time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)

	s.router.Route("/scheduler", func(r chi.Router) {
		r.Post("/start", s.handleSchedulerStart)
		r.Post("/stop", s.handleSchedulerStop)
		r.Post("/pause", s.handleSchedulerPause)
		r.Post("/resume", s.handleSchedulerResume)
	})

	s.router.Route("/broker", func(r chi.Router) {
		r.Post("/connect", s.handleBrokerConnect)
		r.Post("/disconnect", s.handleBrokerDisconnect)
		r.Get("/status", s.handleBrokerStatus)
	})

	s.router.Post("/positions/sync", s.handlePositionsSync)

	s.router.Get("/ws", s.handleWebSocket)
}

// loggingMiddleware logs every request via a chi response-writer wrapper
// to capture status/bytes written, the same shape as the teacher's.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Start begins serving; it blocks until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("admin server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
