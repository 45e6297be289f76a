// Package main is the entrypoint for the aigrader worker. It consumes tasks from the
// work queue, runs inference and publishes completion notifications.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiranshivaraju/aigrader/internal/ai"
	"github.com/kiranshivaraju/aigrader/internal/broadcast"
	"github.com/kiranshivaraju/aigrader/internal/cache"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/internal/queue"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateAI(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Queue.Driver == "memory" {
		return fmt.Errorf("load config: the memory queue only works with the embedded worker in the server")
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "concurrency", cfg.Worker.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cache.WithResultTTL(cfg.Redis.ResultTTL))
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	broker, err := queue.Connect(cfg.Queue, cfg.Worker.Concurrency, slog.Default())
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer broker.Close()
	slog.Info("queue connected", "queue", cfg.Queue.Name)

	grader, err := ai.NewGraderFromConfig(cfg.AI, slog.Default())
	if err != nil {
		return fmt.Errorf("create AI grader: %w", err)
	}
	slog.Info("AI provider initialized", "provider", grader.ProviderName(), "models", grader.Models())

	workers := worker.NewPool(
		broker,
		redisCache,
		broadcast.NewRedisBroadcaster(redisCache.Client(), cfg.Redis.BroadcastChannel),
		worker.Handlers(grader),
		worker.WithConcurrency(cfg.Worker.Concurrency),
		worker.WithTimeout(cfg.AI.InferenceTimeout),
		worker.WithLedger(store.NewPostgresStore(pool)),
	)

	if err := workers.Run(ctx); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}
