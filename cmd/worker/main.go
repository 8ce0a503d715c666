package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/labocr/internal/app"
	"github.com/nikhilbhutani/labocr/internal/audit"
	"github.com/nikhilbhutani/labocr/internal/cache"
	"github.com/nikhilbhutani/labocr/internal/config"
	"github.com/nikhilbhutani/labocr/internal/database"
	"github.com/nikhilbhutani/labocr/internal/pipeline"
	"github.com/nikhilbhutani/labocr/internal/queue"
	"github.com/nikhilbhutani/labocr/internal/queue/workers"
	"github.com/nikhilbhutani/labocr/internal/storage"
	"github.com/nikhilbhutani/labocr/internal/webhook"
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
	if !cfg.AsyncEnabled() {
		slog.Error("worker requires SUPABASE_URL and SUPABASE_SERVICE_KEY")
		os.Exit(1)
	}

	ctx := context.Background()
	var opts []pipeline.Option

	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, runs will not be recorded", "error", err)
		} else {
			defer db.Close()
			opts = append(opts, pipeline.WithAuditor(audit.NewService(db)))
		}
	}

	rdb := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer rdb.Close()
	textCache := cache.NewCache(rdb)
	if err := textCache.Ping(ctx); err != nil {
		slog.Warn("redis unavailable", "error", err)
	} else {
		opts = append(opts, pipeline.WithCache(textCache, cfg.OCR.CacheTTL))
	}

	processor, err := app.NewProcessor(cfg, opts...)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ShutdownTimeout: 30 * time.Second,
			Logger:          newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry()
	registry.Use(logTask)

	reportWorker := workers.NewReportWorker(
		processor,
		storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey),
		cfg.Storage.Bucket,
		webhook.NewDispatcher(),
		cfg.Webhook.Secret,
	)
	registry.Register(queue.TypeReportProcess, asynq.HandlerFunc(reportWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "recognizer", processor.Recognizer())
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
