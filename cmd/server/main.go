package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/mattn/go-sqlite3"

	"crmsync/internal/api"
	"crmsync/internal/app"
	"crmsync/internal/config"
	"crmsync/internal/middleware"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	sourceDB, err := sql.Open(cfg.SourceDriver, cfg.SourceDSN)
	if err != nil {
		logger.Error("open source database", "error", err)
		os.Exit(1)
	}
	defer sourceDB.Close() //nolint:errcheck

	ctx := context.Background()
	application, err := app.New(ctx, app.Deps{Cfg: cfg, SourceDB: sourceDB, Logger: logger})
	if err != nil {
		logger.Error("wire application", "error", err)
		os.Exit(1)
	}

	if application.Scheduler != nil {
		if err := application.Scheduler.Start(cfg.SyncSchedule); err != nil {
			logger.Error("start scheduler", "error", err)
			os.Exit(1)
		}
		defer application.Scheduler.Stop()
	}

	handler := api.NewHandler(
		application.Engine,
		application.Tables,
		application.Mappings,
		application.Descriptors,
		logger.With("component", "api"),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		handler.MountRoutes(r)
	})

	logger.Info("sync service listening",
		"addr", cfg.ListenAddr,
		"backend", cfg.RemoteBackend,
		"tables", len(application.Descriptors),
	)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
