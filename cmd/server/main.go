// Package main is the entrypoint for the aigrader API server.
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
	"time"

	"github.com/kiranshivaraju/aigrader/internal/ai"
	"github.com/kiranshivaraju/aigrader/internal/api"
	"github.com/kiranshivaraju/aigrader/internal/api/handler"
	mw "github.com/kiranshivaraju/aigrader/internal/api/middleware"
	"github.com/kiranshivaraju/aigrader/internal/broadcast"
	"github.com/kiranshivaraju/aigrader/internal/cache"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/internal/queue"
	"github.com/kiranshivaraju/aigrader/internal/realtime"
	"github.com/kiranshivaraju/aigrader/internal/retention"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/internal/task"
	"github.com/kiranshivaraju/aigrader/internal/worker"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env, "queue", cfg.Queue.Driver, "embedded_worker", cfg.Worker.Embedded)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Redis: result store, rate limit counters and the broadcast channel
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cache.WithResultTTL(cfg.Redis.ResultTTL))
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	broadcaster := broadcast.NewRedisBroadcaster(redisCache.Client(), cfg.Redis.BroadcastChannel)

	// 5. Work queue
	broker, err := queue.Connect(cfg.Queue, cfg.Worker.Concurrency, slog.Default())
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer broker.Close()
	slog.Info("queue connected", "driver", cfg.Queue.Driver)

	// 6. Services
	grader, err := newGrader(cfg)
	if err != nil {
		return err
	}

	pgStore := store.NewPostgresStore(pool)
	svcOpts := []task.Option{task.WithMinContentLength(cfg.Tasks.MinContentLength)}
	if grader != nil {
		svcOpts = append(svcOpts, task.WithGrader(grader, cfg.AI.InferenceTimeout))
		slog.Info("inline grading enabled", "provider", grader.ProviderName())
	}
	svc := task.NewService(pgStore, redisCache, broker, svcOpts...)

	registry := realtime.NewRegistry()
	listener := realtime.NewListener(broadcaster, registry, slog.Default())

	reaper, err := retention.NewReaper(pgStore, cfg.Tasks.RetentionSchedule, cfg.Redis.ResultTTL, slog.Default())
	if err != nil {
		return fmt.Errorf("create retention reaper: %w", err)
	}

	var workers *worker.Pool
	if cfg.Worker.Embedded {
		slog.Info("embedded worker enabled", "provider", grader.ProviderName(), "concurrency", cfg.Worker.Concurrency)

		workers = worker.NewPool(broker, redisCache, broadcaster, worker.Handlers(grader),
			worker.WithConcurrency(cfg.Worker.Concurrency),
			worker.WithTimeout(cfg.AI.InferenceTimeout),
			worker.WithLedger(pgStore),
		)
	}

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),

		HealthHandler: handler.NewHealthHandler(healthChecks(pgStore, redisCache, broker, listener)...),

		SubmitObjectivesHandler: handler.NewSubmitObjectivesHandler(svc),
		GradeObjectivesHandler:  gradeHandler(grader, svc),
		SubmitSentimentHandler:  handler.NewSubmitSentimentHandler(svc),
		StatusHandler:           handler.NewStatusHandler(svc),
		ObjectivesResultHandler: handler.NewObjectivesResultHandler(svc),
		SentimentResultHandler:  handler.NewSentimentResultHandler(svc),
		ListTasksHandler:        handler.NewListTasksHandler(pgStore),

		Realtime: realtime.NewHandler(registry,
			realtime.WithSnapshot(svc.Snapshot),
			realtime.WithCheckOrigin(allowOrigin(cfg.Server.Env)),
		),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server, listener, reaper and the optional embedded worker
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(grader != nil, cfg.AI.InferenceTimeout),
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := listener.Run(gctx); err != nil {
			return fmt.Errorf("notification listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return reaper.Run(gctx)
	})

	if workers != nil {
		g.Go(func() error {
			return workers.Run(gctx)
		})
	}

	// Wait for shutdown signal or a component failure, then drain.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by Shutdown.
		registry.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

type pingFunc interface{ Ping(context.Context) error }

type realtimeHealth interface {
	pingFunc
	Stats() realtime.ListenerStats
}

// healthChecks covers database, cache and queue connectivity plus the
// notification listener, whose delivery counters ride along in the body.
func healthChecks(db, redis, broker pingFunc, listener realtimeHealth) []handler.Check {
	return []handler.Check{
		{Name: "database", Ping: db.Ping},
		{Name: "cache", Ping: redis.Ping},
		{Name: "queue", Ping: broker.Ping},
		{Name: "realtime", Ping: listener.Ping, Stats: func() any { return listener.Stats() }},
	}
}

// allowOrigin accepts any WebSocket origin in development and defers to the same-origin
// check otherwise.
func allowOrigin(env string) func(r *http.Request) bool {
	if env == "development" {
		return func(*http.Request) bool { return true }
	}
	return nil
}

// newGrader builds the grader used for inline grading and the embedded worker.
// Without AI_PROVIDER the server runs without one.
func newGrader(cfg *config.Config) (*ai.Grader, error) {
	if cfg.AI.Provider == "" && !cfg.Worker.Embedded {
		return nil, nil
	}
	if err := cfg.ValidateAI(); err != nil {
		return nil, fmt.Errorf("invalid AI config: %w", err)
	}
	grader, err := ai.NewGraderFromConfig(cfg.AI, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("create AI grader: %w", err)
	}
	return grader, nil
}

// gradeHandler leaves the inline grading routes unwired when there is no grader.
func gradeHandler(grader *ai.Grader, svc *task.Service) http.HandlerFunc {
	if grader == nil {
		return nil
	}
	return handler.NewGradeObjectivesHandler(svc)
}

// writeTimeout leaves room for an inline grading call to finish.
func writeTimeout(inlineGrading bool, inference time.Duration) time.Duration {
	const base = 30 * time.Second
	if inlineGrading && inference+10*time.Second > base {
		return inference + 10*time.Second
	}
	return base
}
