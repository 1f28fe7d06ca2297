package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"teamdesk/internal/attendance"
	"teamdesk/internal/config"
	"teamdesk/internal/metrics"
	"teamdesk/internal/model"
	"teamdesk/internal/realtime"
	"teamdesk/internal/team"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg        config.Config
	log        zerolog.Logger
	attendance *attendance.Service
	team       *team.Service
	registry   *realtime.Registry
	store      Pinger
	validate   *requestValidator
	upgrader   websocket.Upgrader
}

func NewServer(cfg config.Config, log zerolog.Logger, attendanceSvc *attendance.Service, teamSvc *team.Service, registry *realtime.Registry, store Pinger) *Server {
	s := &Server{
		cfg:        cfg,
		log:        log.With().Str("component", "http").Logger(),
		attendance: attendanceSvc,
		team:       teamSvc,
		registry:   registry,
		store:      store,
		validate:   newRequestValidator(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitPerMinute, time.Minute))
		}
		r.Use(s.withSession)

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", s.handleMe)
			r.Get("/ws", s.handleWS)

			r.Post("/attendance", s.handleMarkAttendance)
			r.Get("/attendance", s.handleAttendanceHistory)
			r.Get("/attendance/status", s.handleAttendanceStatus)

			r.With(requireRoles(model.RoleManager)).Post("/attendance-timeframe", s.handleSetTimeframe)
			r.Get("/attendance-timeframe", s.handleGetTimeframe)
			r.Get("/attendance-timeframe/agent", s.handleGetAgentTimeframe)

			r.With(requireRoles(model.RoleAdmin, model.RoleManager)).Post("/users", s.handleCreateUser)
			r.With(requireRoles(model.RoleAdmin, model.RoleManager)).Post("/agents", s.handleCreateAgent)
			r.With(requireRoles(model.RoleAdmin, model.RoleManager)).Get("/team", s.handleListTeam)

			r.Post("/clients", s.handleCreateClient)
			r.Get("/clients", s.handleListClients)
			r.Post("/daily-reports", s.handleSubmitReport)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.requestLog(r).Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// checkOrigin accepts same-host pages, the configured CORS origin, and
// clients that send no Origin header.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.cfg.CORSOrigin == "*" || strings.EqualFold(origin, s.cfg.CORSOrigin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
