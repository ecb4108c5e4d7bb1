package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShieldStack/server/internal/config"
	"github.com/ShieldStack/server/internal/httpserver"
	"github.com/ShieldStack/server/internal/logger"
	"github.com/ShieldStack/server/internal/metrics"
	"github.com/ShieldStack/server/internal/reports"
	"github.com/ShieldStack/server/pkg/secureheaders"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	// A missing .env file is fine, environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := logger.New(logger.Config{Level: "error", Format: "json", Service: "shieldstackd"})
		bootLogger.Fatal().Err(err).Msg("config.load_failed")
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "shieldstackd",
		Environment: cfg.Logging.Environment,
	})

	policy, err := cfg.Headers.BuildPolicy()
	if err != nil {
		appLogger.Fatal().Err(err).Msg("policy.build_failed")
	}
	resolver := secureheaders.NewResolver(policy)

	metricsCollector := metrics.New(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := reports.NewStore(ctx, cfg.Reports)
	cancel()
	if err != nil {
		appLogger.Fatal().Err(err).Msg("reports.store_init_failed")
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error().Err(err).Msg("reports.store_close_failed")
		}
	}()

	forwarder := reports.NewForwarder(cfg.Reports.Forward, appLogger, metricsCollector)

	srv := httpserver.New(cfg, resolver, store, forwarder, metricsCollector, appLogger)

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().
			Str("address", cfg.Server.Address).
			Str("reports_backend", cfg.Reports.Backend).
			Msg("server.starting")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		appLogger.Info().Str("signal", sig.String()).Msg("server.shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error().Err(err).Msg("server.shutdown_failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal().Err(err).Msg("server.failed")
		}
	}
}
