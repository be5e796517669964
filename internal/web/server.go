package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/attendance-cam/internal/web/handlers"
	"github.com/kozaktomas/attendance-cam/internal/web/middleware"
)

// Deps are the collaborators the HTTP surfaces read from.
type Deps struct {
	Attendance handlers.AttendanceService
	Frames     handlers.FrameSource
	Roster     handlers.RosterReloader
	Workers    handlers.WorkerStatusSource
	Device     handlers.DevicePresence // nil when the source has no local device
	DevicePath string
	Metrics    http.Handler
	Clock      quartz.Clock
}

// Server represents the web server
type Server struct {
	deps           Deps
	router         *chi.Mux
	httpServer     *http.Server
	logger         slog.Logger
	allowedOrigins []string
}

// NewServer creates a new web server
func NewServer(deps Deps, host string, port int, allowedOrigins []string, logger slog.Logger) *Server {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	r := chi.NewRouter()

	s := &Server{
		deps:           deps,
		router:         r,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute, // the video feed lifts its own deadline
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting web server", slog.F("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
