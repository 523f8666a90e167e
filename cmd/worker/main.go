package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian/internal/app"
	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/entitlements"
	"github.com/meridian-erp/meridian/internal/idempotency"
	jobmetrics "github.com/meridian-erp/meridian/internal/jobs"
	"github.com/meridian-erp/meridian/internal/masterdata"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/outbox"
	"github.com/meridian-erp/meridian/internal/platform/cache"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queueClient := asynq.NewClient(redisOpts)
	publisher := jobs.NewPublisher(queueClient)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	tracker := jobmetrics.NewMetrics(metrics.Registerer())

	outboxStore := outbox.NewStore(pool)
	dispatcher := outbox.NewDispatcher(outboxStore, publisher, logger)
	drainer := jobs.NewDrainer(dispatcher, outboxStore, metrics, tracker, logger)

	masterdataRepo := masterdata.NewRepository(pool)
	entitlementsService := entitlements.NewService(pool, redisClient, logger)
	consumer := jobs.NewEventConsumer(masterdataRepo, entitlementsService, logger)

	idemStore := idempotency.NewStore(pool,
		time.Duration(cfg.IdempotencyTTLHours)*time.Hour, cfg.IdempotencyWaitDeadline)
	verifier := audit.NewVerifier(pool)
	maintenance := jobs.NewMaintenance(idemStore, verifier, masterdataRepo, tracker, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOutboxDrain, Handler: drainer.Handle},
			{Type: jobs.TaskLedgerEvent, Handler: consumer.Handle},
			{Type: jobs.TaskIdempotencyPurge, Handler: maintenance.HandleIdempotencyPurge},
			{Type: jobs.TaskAuditVerify, Handler: maintenance.HandleAuditVerify},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "* * * * *", Task: jobs.NewOutboxDrainTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: jobs.NewIdempotencyPurgeTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: jobs.NewAuditVerifyTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
