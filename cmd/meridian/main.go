package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian/internal/app"
	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/entitlements"
	"github.com/meridian-erp/meridian/internal/fin/invoices"
	"github.com/meridian-erp/meridian/internal/fin/payments"
	"github.com/meridian-erp/meridian/internal/fin/payroll"
	"github.com/meridian-erp/meridian/internal/fin/recon"
	"github.com/meridian-erp/meridian/internal/idempotency"
	"github.com/meridian-erp/meridian/internal/ledger/accounts"
	"github.com/meridian-erp/meridian/internal/ledger/dimensions"
	"github.com/meridian-erp/meridian/internal/ledger/journal"
	"github.com/meridian-erp/meridian/internal/ledger/periods"
	"github.com/meridian-erp/meridian/internal/ledger/reports"
	"github.com/meridian-erp/meridian/internal/ledger/shared"
	"github.com/meridian-erp/meridian/internal/masterdata"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/outbox"
	"github.com/meridian-erp/meridian/internal/platform/cache"
	"github.com/meridian-erp/meridian/internal/platform/db"
	"github.com/meridian-erp/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

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

	metrics := observability.NewMetrics()

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataHandler := masterdata.NewHandler(logger, masterdataRepo)

	recorder := audit.NewRecorder()
	timeline := audit.NewTimeline(pool)
	verifier := audit.NewVerifier(pool)
	auditHandler := audit.NewHandler(logger, timeline, verifier)

	idemStore := idempotency.NewStore(pool,
		time.Duration(cfg.IdempotencyTTLHours)*time.Hour, cfg.IdempotencyWaitDeadline)
	outboxStore := outbox.NewStore(pool)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	dimensionsRepo := dimensions.NewRepository(pool)
	dimensionsHandler := dimensions.NewHandler(logger, dimensionsRepo)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(pool, periodsRepo, recorder, cfg.PeriodLockOverride)
	periodsHandler := periods.NewHandler(logger, periodsService)

	limits := journal.Limits{
		LineAmountMaxMinor: shared.Minor(cfg.LineAmountMaxMinor),
		LineCountMax:       cfg.LineCountMaxPerTxn,
	}
	journalRepo := journal.NewRepository(pool)
	journalService := journal.NewService(journalRepo, idemStore, periodsService,
		recorder, outboxStore, metrics, logger, limits, cfg.PostingRetryMax)
	journalHandler := journal.NewHandler(logger, journalService)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo)
	reportsHandler := reports.NewHandler(logger, reportsService)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(invoicesRepo, journalService, outboxStore)
	invoicesHandler := invoices.NewHandler(logger, invoicesService)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, invoicesRepo, journalService, outboxStore)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, journalService, outboxStore)
	payrollHandler := payroll.NewHandler(logger, payrollService)

	reconRepo := recon.NewRepository(pool)
	reconService := recon.NewService(pool, reconRepo, journalService,
		idemStore, recorder, outboxStore, logger)
	reconHandler := recon.NewHandler(logger, reconService)

	entitlementsService := entitlements.NewService(pool, redisClient, logger)
	entitlementsHandler := entitlements.NewHandler(entitlementsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Membership:          masterdataRepo,
		JournalHandler:      journalHandler,
		AccountsHandler:     accountsHandler,
		DimensionsHandler:   dimensionsHandler,
		PeriodsHandler:      periodsHandler,
		ReportsHandler:      reportsHandler,
		AuditHandler:        auditHandler,
		EntitlementsHandler: entitlementsHandler,
		InvoicesHandler:     invoicesHandler,
		PaymentsHandler:     paymentsHandler,
		PayrollHandler:      payrollHandler,
		ReconHandler:        reconHandler,
		MasterDataHandler:   masterdataHandler,
		JobHandler:          jobHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
