package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/attendance-cam/internal/constants"
	"github.com/kozaktomas/attendance-cam/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Attendance)
	videoHandler := handlers.NewVideoHandler(s.deps.Frames, s.deps.Clock, constants.VideoFrameInterval)
	facesHandler := handlers.NewFacesHandler(s.deps.Roster, s.logger.Named("faces"))
	workersHandler := handlers.NewWorkersHandler(s.deps.Workers, s.deps.Device, s.deps.DevicePath)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// Long-lived stream, kept out of the request timeout
	s.router.Get("/video_feed", videoHandler.Feed)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Get("/status", attendanceHandler.Status)
		r.Post("/exit_confirm", attendanceHandler.ExitConfirm)
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/snapshot.jpg", videoHandler.Snapshot)
		r.Get("/health/workers", workersHandler.Get)

		if s.deps.Roster != nil {
			r.Post("/reload_faces", facesHandler.Reload)
		}
	})

	if s.deps.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	s.router.Get("/", s.servePlaceholder)
}

// servePlaceholder serves a minimal page pointing at the live view and API.
func (s *Server) servePlaceholder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Attendance</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        a { color: #00d9ff; }
        img { max-width: 90vw; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Attendance</h1>
        <img src="/video_feed" alt="live view">
        <p>Status: <a href="/api/status">/api/status</a> &middot; Today: <a href="/api/attendance/today">/api/attendance/today</a></p>
    </div>
</body>
</html>`))
}
