package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/freightledger/internal/app"
	"github.com/odyssey-erp/freightledger/jobs"
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

	services, cleanup, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	depreciationJob, reconcileJob, err := buildJobs(cfg, services, logger)
	if err != nil {
		logger.Error("build jobs", slog.Any("error", err))
		os.Exit(1)
	}

	// Cron runs leave as_of empty so each run depreciates the month before it fires.
	depreciationTask, err := jobs.NewDepreciationRunTask(time.Time{}, uuid.Nil)
	if err != nil {
		logger.Error("build depreciation task", slog.Any("error", err))
		os.Exit(1)
	}
	reconcileTask, err := jobs.NewLedgerReconcileTask(false)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDepreciationRun, Handler: depreciationJob.Handle},
			{Type: jobs.TaskLedgerReconcile, Handler: reconcileJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DepreciationCron, Task: depreciationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ReconcileCron, Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildJobs(cfg *app.Config, services *app.Services, logger *slog.Logger) (*jobs.DepreciationRunJob, *jobs.LedgerReconcileJob, error) {
	systemUser, err := cfg.SystemUser()
	if err != nil {
		return nil, nil, err
	}
	jobMetrics := services.Metrics.Jobs()
	depreciationJob := jobs.NewDepreciationRunJob(services.Scheduler, systemUser, logger, jobMetrics)
	reconcileJob := jobs.NewLedgerReconcileJob(services.Journals,
		[]jobs.OpenItemReconciler{services.Receivables, services.Payables},
		services.Locker, logger, jobMetrics)
	return depreciationJob, reconcileJob, nil
}
