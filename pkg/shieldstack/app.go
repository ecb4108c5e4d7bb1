package shieldstack

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShieldStack/server/internal/config"
	"github.com/ShieldStack/server/internal/httpserver"
	"github.com/ShieldStack/server/internal/lifecycle"
	"github.com/ShieldStack/server/internal/logger"
	"github.com/ShieldStack/server/internal/metrics"
	"github.com/ShieldStack/server/internal/reports"
	"github.com/ShieldStack/server/pkg/secureheaders"
)

// App wires the header service components for reuse or standalone serving.
type App struct {
	Config   *config.Config
	Resolver *secureheaders.Resolver
	Reports  reports.Store

	router           chi.Router
	forwarder        *reports.Forwarder
	resourceManager  *lifecycle.Manager
	metricsCollector *metrics.Metrics
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store    reports.Store
	router   chi.Router
	registry prometheus.Registerer
}

// WithReportStore sets a custom report storage backend.
func WithReportStore(store reports.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRouter allows callers to provide an existing chi.Router to register routes onto.
func WithRouter(router chi.Router) Option {
	return func(o *options) {
		o.router = router
	}
}

// WithRegistry sets the Prometheus registerer metrics are registered with.
// Embedding hosts that own a registry pass it here to avoid collisions on
// the default one.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// NewApp assembles the header service for embedding or standalone serving.
func NewApp(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("shieldstack: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	app := &App{
		Config:          cfg,
		resourceManager: lifecycle.NewManager(),
	}

	policy, err := cfg.Headers.BuildPolicy()
	if err != nil {
		return nil, fmt.Errorf("build header policy: %w", err)
	}
	app.Resolver = secureheaders.NewResolver(policy)

	registry := optState.registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	app.metricsCollector = metrics.New(registry)

	if optState.store != nil {
		app.Reports = optState.store
	} else {
		store, err := reports.NewStore(ctx, cfg.Reports)
		if err != nil {
			return nil, fmt.Errorf("init report store: %w", err)
		}
		app.Reports = store
		app.resourceManager.RegisterFunc("report-store", store.Close)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "shieldstack",
		Environment: cfg.Logging.Environment,
	})

	app.forwarder = reports.NewForwarder(cfg.Reports.Forward, appLogger, app.metricsCollector)

	if optState.router != nil {
		app.router = optState.router
	} else {
		app.router = chi.NewRouter()
	}

	httpserver.ConfigureRouter(app.router, cfg, app.Resolver, app.Reports, app.forwarder, app.metricsCollector, appLogger)

	return app, nil
}

// Router returns the chi router with routes registered.
func (a *App) Router() chi.Router {
	return a.router
}

// Handler exposes the router as an http.Handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// ReloadPolicy swaps the active header policy. In-flight requests keep
// resolving against the policy they started with.
func (a *App) ReloadPolicy(headers config.HeadersConfig) error {
	policy, err := headers.BuildPolicy()
	if err != nil {
		a.metricsCollector.ObservePolicyReload(false)
		return fmt.Errorf("build header policy: %w", err)
	}
	a.Resolver.SetPolicy(policy)
	a.Config.Headers = headers
	a.metricsCollector.ObservePolicyReload(true)
	return nil
}

// Close releases resources owned by the app.
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// NewHandler is a convenience that constructs an App and returns its handler.
func NewHandler(ctx context.Context, cfg *config.Config, opts ...Option) (http.Handler, func(context.Context) error, error) {
	app, err := NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	shutdown := func(context.Context) error {
		return app.Close()
	}
	return app.Handler(), shutdown, nil
}

// Config is an exported alias of the internal configuration struct for embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding the service.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
