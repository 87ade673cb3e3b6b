package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/gosuda/orkestra/internal/api/v1"
	"github.com/gosuda/orkestra/internal/api/ws"
	"github.com/gosuda/orkestra/internal/config"
	"github.com/gosuda/orkestra/internal/metrics"
	"github.com/gosuda/orkestra/internal/server/middleware"
)

// Deps are the application services the HTTP layer calls into.
type Deps struct {
	Store    v1.DataStore
	Query    v1.ActivityQuery
	Audit    v1.AuditInterceptor
	Hook     middleware.AuditAttacher
	Delays   v1.DelayChecker
	Roles    v1.RoleNotifier
	Feed     *ws.Hub // nil without Redis
	Metrics  *metrics.Metrics
	ReadyFns []func(context.Context) error
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Deps
}

// New creates a Server with all routes wired. ctx bounds the lifetime of the
// rate limiter cleanup goroutines.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	router.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst))

	s := &Server{
		router: router,
		deps:   deps,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	authn := middleware.Auth(cfg.JWT.Secret, deps.Store.Users())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authn)
		r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst))
		r.Use(middleware.Audit(deps.Hook))

		apiConfig := huma.DefaultConfig("Orkestra API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, deps)
	})

	// Live activity feed. Admin only, like the logs it mirrors.
	if deps.Feed != nil {
		router.Route("/ws", func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.RequireAdmin())
			registerWSRoutes(r, deps.Feed)
		})
	}

	// Profiling endpoints are admin only.
	router.With(authn, middleware.RequireAdmin()).Mount("/debug", chimw.Profiler())

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/readyz", s.ready)

	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	for _, fn := range s.deps.ReadyFns {
		if err := fn(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
