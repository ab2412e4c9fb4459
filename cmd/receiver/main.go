package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DanielPopoola/webhook-receiver/internal/adapters/cache"
	"github.com/DanielPopoola/webhook-receiver/internal/adapters/handler"
	"github.com/DanielPopoola/webhook-receiver/internal/adapters/handler/middleware"
	"github.com/DanielPopoola/webhook-receiver/internal/adapters/postgres"
	"github.com/DanielPopoola/webhook-receiver/internal/adapters/sqlite"
	"github.com/DanielPopoola/webhook-receiver/internal/api"
	"github.com/DanielPopoola/webhook-receiver/internal/config"
	"github.com/DanielPopoola/webhook-receiver/internal/core/ports"
	"github.com/DanielPopoola/webhook-receiver/internal/core/service"
	"github.com/DanielPopoola/webhook-receiver/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Cache.Enabled {
		store = cache.NewCachedRepository(store, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
		logger.Info("dedup cache enabled", "ttl", cfg.Cache.TTL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ingestMetrics := metrics.NewIngestMetrics(registry, cfg.Metrics.Namespace)
	httpMetrics := metrics.NewHTTPMetrics(registry, cfg.Metrics.Namespace)

	auth := service.NewAuthenticator(cfg.Auth.Secret)
	ingestService := service.NewIngestionService(store, auth, logger, service.WithRecorder(ingestMetrics))
	queryService := service.NewQueryService(store, auth, logger)

	h := handler.NewWebhookHandler(ingestService, queryService, logger, cfg.Server.MaxBodyBytes)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler(registry))
	if err := api.RegisterRoutes(ctx, mux, logger); err != nil {
		return fmt.Errorf("failed to register api docs: %w", err)
	}

	// The timeout handler copies the request, so metrics sit inside it to see the matched pattern.
	router := middleware.Chain(mux,
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.Timeout(cfg.Server.RequestTimeout),
		httpMetrics.Middleware,
	)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("service_started",
			"service", cfg.Primary.ServiceName,
			"env", cfg.Primary.Env,
			"addr", server.Addr,
			"driver", cfg.Database.Driver,
			"log_level", cfg.Logger.Level,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

// openStore connects the configured backend and brings its schema up to date.
func openStore(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (ports.WebhookRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewWebhookRepository(db), db.Close, nil

	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
