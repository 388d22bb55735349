package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mojgrad-go/internal/api"
	"mojgrad-go/internal/auth"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Config contains the dependencies of Server. FilesDir, when set, is served
// under /files for the local storage backend. Notifier receives every
// proximity notification next to the connection that triggered it and
// defaults to the log.
type Config struct {
	Http     models.ServerConfig
	Service  *api.Service
	Hub      *notify.Hub
	Notifier notify.Notifier
	Tokens   *auth.TokenService
	FilesDir string
}

// Server exposes the application service over HTTP and WebSocket
type Server struct {
	cfg      Config
	router   *chi.Mux
	upgrader websocket.Upgrader

	// streams outlive their request; they end when the server stops
	streamCtx    context.Context
	cancelStream context.CancelFunc
}

func New(cfg Config) *Server {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.LogNotifier{}
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		streamCtx:    streamCtx,
		cancelStream: cancel,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	if s.cfg.FilesDir != "" {
		files := http.FileServer(http.Dir(s.cfg.FilesDir))
		s.router.Handle("/files/*", http.StripPrefix("/files/", files))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/categories", s.handleCategories)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.cfg.Tokens))

			r.Get("/me", s.handleProfile)
			r.Post("/me/location", s.handleUpdateLocation)
			r.Get("/me/votes", s.handleUserVotes)
			r.Get("/me/points", s.handlePointHistory)

			r.Get("/problems", s.handleListProblems)
			r.Post("/problems", s.handleReportProblem)
			r.Get("/problems/near", s.handleProblemsNear)
			r.Get("/problems/{id}", s.handleGetProblem)
			r.Post("/problems/{id}/vote", s.handleVote)
			r.Delete("/problems/{id}/vote", s.handleUnvote)
			r.Post("/problems/{id}/vote/toggle", s.handleToggleVote)
			r.Post("/problems/{id}/status/toggle", s.handleToggleStatus)

			r.Post("/uploads", s.handleUpload)
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/admin/reconcile", s.handleReconcile)
		})
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.cfg.Tokens))
		r.Get("/ws/proximity", s.handleProximityStream)
		r.Get("/ws/leaderboard", s.handleLeaderboardStream)
	})
}

// Handler returns the router. Used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close ends every open stream
func (s *Server) Close() {
	s.cancelStream()
}

// Run serves HTTP/1.1 and cleartext HTTP/2 on the configured address until
// ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.cfg.Http.Addr,
		Handler:      h2c.NewHandler(s.router, &http2.Server{}),
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  s.cfg.Http.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		zap.L().Info("Shutting down HTTP server")
		s.Close()

		timeout := s.cfg.Http.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		zap.L().Info("HTTP server stopped gracefully")
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Service.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
