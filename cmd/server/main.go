package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/garnizeh/servicehub/api"
	dbfs "github.com/garnizeh/servicehub/db"
	"github.com/garnizeh/servicehub/internal/config"
	"github.com/garnizeh/servicehub/internal/db"
	"github.com/garnizeh/servicehub/internal/engine"
	"github.com/garnizeh/servicehub/internal/jobs"
	"github.com/garnizeh/servicehub/internal/repository/postgres"
	"github.com/garnizeh/servicehub/internal/repository/sqlite"
	"github.com/garnizeh/servicehub/pkg/repository"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("err", err))
	os.Exit(1)
}

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	boot := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal(boot, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(boot, "invalid config", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	logger.Info("starting servicehub", slog.String("version", version), slog.String("build_time", buildTime), slog.String("storage", cfg.Storage.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The local SQLite file always backs the job queue; it is also the
	// store unless postgres is configured.
	local, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		fatal(logger, "failed to open DB", err)
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, local, dbfs.Migrations); err != nil {
			fatal(logger, "failed to migrate DB", err)
		}
	}

	var store repository.Store
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pg, err := postgres.NewStore(ctx, cfg.Storage.DatabaseURL, logger)
		if err != nil {
			fatal(logger, "failed to open postgres", err)
		}
		defer pg.Close()
		store = pg
	default:
		store = sqlite.New(local, logger)
	}

	pool := jobs.NewWorkerPool(jobs.NewRepository(local), map[string]jobs.Handler{
		jobs.TypeRequestActivity: jobs.ActivityHandler(store),
	}, logger, cfg.EngineConfig.ActivityWorkers)
	pool.Start(ctx)

	svc := engine.NewService(store,
		engine.WithLogger(logger),
		engine.WithRetention(cfg.EngineConfig.NotificationRetention),
		engine.WithActivitySink(jobs.NewActivityQueue(pool, cfg.EngineConfig.ActivityMaxAttempts)),
	)

	handler := api.SetupRoutes(cfg, version, buildTime, svc, store)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server failed to start", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}

	pool.Stop()
	cancel()

	// Close database connection
	if err := local.Close(); err != nil {
		logger.Error("error closing DB", slog.Any("err", err))
	}

	logger.Info("server exited")
}
