package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/labocr/internal/api"
	"github.com/nikhilbhutani/labocr/internal/api/handlers"
	"github.com/nikhilbhutani/labocr/internal/app"
	"github.com/nikhilbhutani/labocr/internal/audit"
	"github.com/nikhilbhutani/labocr/internal/cache"
	"github.com/nikhilbhutani/labocr/internal/config"
	"github.com/nikhilbhutani/labocr/internal/database"
	"github.com/nikhilbhutani/labocr/internal/pipeline"
	"github.com/nikhilbhutani/labocr/internal/queue"
	"github.com/nikhilbhutani/labocr/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		opts   []pipeline.Option
		deps   api.Deps
		checks = map[string]handlers.Pinger{}
	)

	// Database (optional): enables run auditing and history
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without run history", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db, os.DirFS(cfg.Database.MigrationsPath)); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			runs := audit.NewService(db)
			opts = append(opts, pipeline.WithAuditor(runs))
			deps.Runs = runs
			checks["database"] = db
		}
	}

	// Redis (optional): OCR text cache
	rdb := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer rdb.Close()
	textCache := cache.NewCache(rdb)
	if err := textCache.Ping(ctx); err != nil {
		slog.Warn("redis unavailable, running without OCR cache", "error", err)
	} else {
		opts = append(opts, pipeline.WithCache(textCache, cfg.OCR.CacheTTL))
		checks["redis"] = textCache
	}

	processor, err := app.NewProcessor(cfg, opts...)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	deps.Processor = processor
	deps.Checks = checks

	if cfg.AsyncEnabled() {
		jobs := queue.NewClient(cfg.Redis)
		defer jobs.Close()
		deps.Async = &handlers.Async{
			Storage: storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey),
			Bucket:  cfg.Storage.Bucket,
			Queue:   jobs,
		}
	} else {
		slog.Info("object storage not configured, async endpoint disabled")
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(cfg, deps).Setup(ctx),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "recognizer", processor.Recognizer())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
