package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/freightledger/internal/accounting/journals"
	"github.com/odyssey-erp/freightledger/internal/allocation"
	jobmetrics "github.com/odyssey-erp/freightledger/internal/jobs"
	"github.com/odyssey-erp/freightledger/internal/shared"
)

// BalanceReconciler checks account balances against journal lines.
type BalanceReconciler interface {
	Reconcile(ctx context.Context, repair bool) (journals.ReconcileReport, error)
}

// OpenItemReconciler checks invoice and voucher caches against allocations.
type OpenItemReconciler interface {
	Reconcile(ctx context.Context, repair bool) (allocation.ReconcileReport, error)
}

// LedgerReconcileJob compares denormalised balances with their source rows.
type LedgerReconcileJob struct {
	Balances  BalanceReconciler
	OpenItems []OpenItemReconciler
	Locker    *redislock.Client
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLedgerReconcileJob constructs the job handler. locker may be nil.
func NewLedgerReconcileJob(balances BalanceReconciler, openItems []OpenItemReconciler, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerReconcileJob {
	return &LedgerReconcileJob{Balances: balances, OpenItems: openItems, Locker: locker, Logger: logger, Metrics: metrics}
}

// ReconcileSummary aggregates the reports of one run.
type ReconcileSummary struct {
	Balances  journals.ReconcileReport     `json:"balances"`
	OpenItems []allocation.ReconcileReport `json:"open_items"`
}

// Drift counts every drifted row in the summary.
func (s ReconcileSummary) Drift() int {
	n := len(s.Balances.Drifts)
	for _, r := range s.OpenItems {
		n += len(r.Drifts)
	}
	return n
}

// Repaired counts every repaired row in the summary.
func (s ReconcileSummary) Repaired() int {
	n := s.Balances.Repaired
	for _, r := range s.OpenItems {
		n += r.Repaired
	}
	return n
}

// Handle executes the reconcile job.
func (j *LedgerReconcileJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload LedgerReconcilePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("reconcile payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload.Repair)
	return err
}

// Run reconciles balances and open items once.
func (j *LedgerReconcileJob) Run(ctx context.Context, repair bool) (ReconcileSummary, error) {
	if j == nil || j.Balances == nil {
		return ReconcileSummary{}, errors.New("ledger reconcile: dependencies not configured")
	}
	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.ReconcileLockKey(), 10*time.Minute, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			j.log().Info("reconcile already running")
			return ReconcileSummary{}, nil
		}
		if err != nil {
			j.log().Warn("reconcile lock unavailable; continuing without lock", slog.Any("error", err))
		} else {
			defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
		}
	}

	tracker := j.metrics().Track(TaskLedgerReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	var summary ReconcileSummary
	summary.Balances, resultErr = j.Balances.Reconcile(ctx, repair)
	if resultErr != nil {
		j.log().Error("reconcile balances", slog.Any("error", resultErr))
		return summary, resultErr
	}
	if n := len(summary.Balances.UnbalancedEntries); n > 0 {
		j.log().Error("unbalanced journal entries found", slog.Int("count", n))
	}
	for _, r := range j.OpenItems {
		report, err := r.Reconcile(ctx, repair)
		if err != nil {
			resultErr = err
			j.log().Error("reconcile open items", slog.Any("error", err))
			return summary, resultErr
		}
		summary.OpenItems = append(summary.OpenItems, report)
	}
	j.metrics().AddItems(TaskLedgerReconcile, "drift", summary.Drift())
	j.metrics().AddItems(TaskLedgerReconcile, "repaired", summary.Repaired())
	j.log().Info("ledger reconcile finished",
		slog.Int("drift", summary.Drift()),
		slog.Int("repaired", summary.Repaired()),
		slog.Int("unbalanced", len(summary.Balances.UnbalancedEntries)))
	return summary, resultErr
}

func (j *LedgerReconcileJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerReconcileJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerReconcile))
	}
	return slog.Default().With(slog.String("job", TaskLedgerReconcile))
}
