package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Server assembles the console HTTP surface: health/metrics endpoints plus
// five console-scope sub-routers that domain handlers in pkg/consoleapi mount onto.
type Server struct {
	Router *chi.Mux

	// Console scope sub-routers, named after their path prefixes.
	CS chi.Router // /cs  — system
	CT chi.Router // /ct  — tenant
	CA chi.Router // /ca  — app
	CP     chi.Router // /cp  — passport (self-service, including /cp/login, /cp/logout)
	CI     chi.Router // /ci  — interface (machine-to-machine)
	OAuth2 chi.Router // /oauth2

	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Metrics   *prometheus.Registry
	startedAt time.Time
}

// NewServer builds the router. corsOrigins configures the allowed CORS
// origins; it is a parameter rather than hardwired so callers can read it
// from config.
func NewServer(corsOrigins []string, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(chimw.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Bios-Token", "Bios-App", "Bios-Authorization", "Bios-Date", "Bios-Ctx", "Bios-Crypto", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/cs", func(r chi.Router) { s.CS = r })
	s.Router.Route("/ct", func(r chi.Router) { s.CT = r })
	s.Router.Route("/ca", func(r chi.Router) { s.CA = r })
	s.Router.Route("/cp", func(r chi.Router) { s.CP = r })
	s.Router.Route("/ci", func(r chi.Router) { s.CI = r })
	s.Router.Route("/oauth2", func(r chi.Router) { s.OAuth2 = r })

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, "system", "healthz", map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		Respond(w, http.StatusServiceUnavailable, "system", "readyz", map[string]string{"status": "database unavailable"})
		return
	}
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		Respond(w, http.StatusServiceUnavailable, "system", "readyz", map[string]string{"status": "redis unavailable"})
		return
	}
	Respond(w, http.StatusOK, "system", "readyz", map[string]string{"status": "ready"})
}
