package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ShieldStack/server/internal/config"
	apierrors "github.com/ShieldStack/server/internal/errors"
	"github.com/ShieldStack/server/internal/logger"
	"github.com/ShieldStack/server/internal/metrics"
	"github.com/ShieldStack/server/internal/reports"
	"github.com/ShieldStack/server/pkg/secureheaders"
)

var (
	serverStartTime = time.Now()
)

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg       *config.Config
	resolver  *secureheaders.Resolver
	store     reports.Store
	forwarder *reports.Forwarder
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New builds the HTTP server with configured router.
func New(cfg *config.Config, resolver *secureheaders.Resolver, store reports.Store, forwarder *reports.Forwarder, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:       cfg,
			resolver:  resolver,
			store:     store,
			forwarder: forwarder,
			metrics:   metricsCollector,
			logger:    appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, cfg, resolver, store, forwarder, metricsCollector, appLogger)

	return s
}

// ConfigureRouter attaches ShieldStack routes and middleware to an existing
// router, for embedding in a host application.
func ConfigureRouter(router chi.Router, cfg *config.Config, resolver *secureheaders.Resolver, store reports.Store, forwarder *reports.Forwarder, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) {
	if router == nil {
		return
	}

	handler := handlers{
		cfg:       cfg,
		resolver:  resolver,
		store:     store,
		forwarder: forwarder,
		metrics:   metricsCollector,
		logger:    appLogger,
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	// Security headers are the product, so the resolver middleware runs
	// ahead of everything that writes a response.
	router.Use(secureheaders.Middleware(resolver, secureheaders.WithObserver(func(res secureheaders.Resolution) {
		metricsCollector.ObserveResolution(res.Secure, res.Headers, res.NonceIssued, res.Duration)
	})))

	// Structured logging middleware runs before RequestID so the
	// request-scoped logger propagates through the context.
	router.Use(logger.Middleware(appLogger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	// Lightweight endpoints with a short timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/healthz", handler.health)
		r.Get("/demo", handler.demoPage)
		// Prometheus metrics endpoint, protected by the optional admin API key.
		r.With(adminAuth(cfg.Server.AdminAPIKey)).Handle("/metrics", promhttp.Handler())
		r.With(adminAuth(cfg.Server.AdminAPIKey)).Get("/admin/reports", handler.listReports)
		r.With(adminAuth(cfg.Server.AdminAPIKey)).Get("/admin/policy", handler.showPolicy)
	})

	if cfg.Reports.Enabled {
		router.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Second))
			if cfg.RateLimit.Enabled {
				r.Use(reportRateLimiter(cfg.RateLimit, metricsCollector))
			}
			r.Post("/csp-reports", handler.ingestReport)
		})
	}
}

// reportRateLimiter limits report ingestion per client IP. Browsers can
// emit violation reports in bursts, so the limit applies per window rather
// than per second.
func reportRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) func(http.Handler) http.Handler {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 120
	}
	window := cfg.Window.Duration
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			m.ObserveRateLimitHit("reports")
			apierrors.WriteError(w, apierrors.ErrCodeRateLimited, "Too many reports, slow down")
		}),
	)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
