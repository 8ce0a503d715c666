package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/labocr/internal/api/handlers"
	"github.com/nikhilbhutani/labocr/internal/api/middleware"
	"github.com/nikhilbhutani/labocr/internal/auth"
	"github.com/nikhilbhutani/labocr/internal/config"
)

// Deps are the services behind the HTTP surface. Runs, Async and the
// readiness checks may be nil/empty when their backends are not configured.
type Deps struct {
	Processor handlers.ReportProcessor
	Runs      handlers.RunStore
	Async     *handlers.Async
	Checks    map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	jwt  *auth.JWTMiddleware
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	rt := &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
	}
	if cfg.Auth.JWTSecret != "" {
		rt.jwt = auth.NewJWTMiddleware(cfg.Auth.JWTSecret)
	}
	return rt
}

// Setup wires middleware and routes. ctx bounds background middleware work.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(ctx, 20, 40)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		if rt.jwt != nil {
			r.Use(rt.jwt.Authenticate)
		}

		reportH := handlers.NewReportHandler(rt.deps.Processor, rt.deps.Async)
		runH := handlers.NewRunHandler(rt.deps.Runs)
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", reportH.Extract)
			r.Post("/text", reportH.ExtractText)
			r.Post("/async", reportH.ExtractAsync)
			r.Get("/runs", runH.List)
			r.Get("/runs/summary", runH.Summary)
		})
	})

	return r
}
