// Package server exposes the diagnosis, quality and session API over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/monitoring"
	"github.com/sells-group/solvmetria/internal/session"
)

// Datasets hands out the current dataset. *dataset.Cache satisfies it.
type Datasets interface {
	Get(ctx context.Context) (*dataset.Dataset, error)
}

// Deps are the collaborators the handlers need. Metrics and Checker are
// optional.
type Deps struct {
	Datasets Datasets
	Sessions *session.Manager
	Metrics  *monitoring.Metrics
	Checker  *monitoring.Checker
}

// Server is the HTTP API.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	router chi.Router
}

// New builds the router.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst, 10*time.Minute).middleware)
		}

		r.Get("/status", s.handleStatus)
		r.Get("/overview", s.handleOverview)
		r.Get("/regions", s.handleRegions)
		r.Get("/regions/{region}/municipalities", s.handleMunicipalities)
		r.Get("/diagnosis", s.handleDiagnosis)
		r.Get("/quality", s.handleQuality)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/level", s.handleSetLevel)
			r.Patch("/params", s.handleAdjust)
			r.Post("/params/reset", s.handleReset)
			r.Get("/params/report", s.handleReport)
			r.Get("/view", s.handleView)
		})
	})

	return r
}
