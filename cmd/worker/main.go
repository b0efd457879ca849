package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/brokerdesk/internal/database"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/tasks"
	"github.com/hugh/brokerdesk/pkg/config"
	"github.com/hugh/brokerdesk/pkg/queue"
	"github.com/hugh/brokerdesk/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting brokerdesk worker",
		"concurrency", cfg.Worker.Concurrency,
		"reconcile_cron", cfg.Quota.ReconcileCron,
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Reconcile locks live in the same Redis the queue uses, so several
	// workers never rewrite one broker's counters at once.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	var locker quota.Locker = quota.NewRedisLocker(redisClient)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unavailable, falling back to in-process reconcile locks", "error", err)
		locker = quota.NewLocalLocker()
	}

	reconciler := quota.NewReconciler(db, locker, quota.ReconcilerConfig{
		LockTTL:     cfg.Quota.LockTTL(),
		MaxAttempts: cfg.Quota.ReconcileRetries,
	}, logger)

	handler := tasks.NewHandler(reconciler, logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, logger)

	scheduler := queue.NewScheduler(&cfg.Redis, logger)
	entryID, err := scheduler.Register(cfg.Quota.ReconcileCron, tasks.NewReconcileAllTask())
	if err != nil {
		logger.Error("failed to register reconcile schedule", "error", err)
		os.Exit(1)
	}
	if next, err := util.NextCronTime(cfg.Quota.ReconcileCron, time.Now().UTC()); err == nil {
		logger.Info("reconcile schedule registered", "entry_id", entryID, "next_run", next)
	}

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")

	scheduler.Shutdown()
	srv.Shutdown()
	redisClient.Close()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
