package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/freightledger/internal/assets"
	jobmetrics "github.com/odyssey-erp/freightledger/internal/jobs"
)

// DepreciationScheduler describes the depreciation engine.
type DepreciationScheduler interface {
	CalculateMonthlyDepreciation(ctx context.Context, asOf time.Time, createdBy uuid.UUID) (assets.RunResult, error)
}

// DepreciationRunJob runs the monthly depreciation from the queue.
type DepreciationRunJob struct {
	Scheduler  DepreciationScheduler
	SystemUser uuid.UUID
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewDepreciationRunJob constructs the job handler.
func NewDepreciationRunJob(scheduler DepreciationScheduler, systemUser uuid.UUID, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepreciationRunJob {
	return &DepreciationRunJob{
		Scheduler:  scheduler,
		SystemUser: systemUser,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the depreciation run. Per-asset failures fail the task so
// asynq retries it; assets already posted are skipped on retry.
func (j *DepreciationRunJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Scheduler == nil {
		return errors.New("depreciation run: dependencies not configured")
	}
	var payload DepreciationRunPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("depreciation run payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf, err := j.resolveAsOf(payload.AsOf)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	createdBy := payload.CreatedBy
	if createdBy == uuid.Nil {
		createdBy = j.SystemUser
	}

	tracker := j.metrics().Track(TaskDepreciationRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	res, err := j.Scheduler.CalculateMonthlyDepreciation(ctx, asOf, createdBy)
	if err != nil {
		resultErr = err
		j.log().Error("depreciation run", slog.String("as_of", asOf.Format(time.DateOnly)), slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskDepreciationRun, "created", res.CreatedEntries)
	j.metrics().AddItems(TaskDepreciationRun, "skipped", len(res.Skipped))
	j.metrics().AddItems(TaskDepreciationRun, "failed", len(res.Failed))
	if res.Contended {
		j.log().Info("depreciation run skipped; another run holds the lock", slog.String("period", res.Period))
		return resultErr
	}
	if len(res.Failed) > 0 {
		resultErr = fmt.Errorf("depreciation run %s: %d assets failed", res.Period, len(res.Failed))
		return resultErr
	}
	j.log().Info("depreciation run finished", slog.String("period", res.Period), slog.Int("created", res.CreatedEntries))
	return resultErr
}

func (j *DepreciationRunJob) resolveAsOf(value string) (time.Time, error) {
	if value == "" {
		now := j.now()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1), nil
	}
	asOf, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of %q", value)
	}
	return asOf, nil
}

func (j *DepreciationRunJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DepreciationRunJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDepreciationRun))
	}
	return slog.Default().With(slog.String("job", TaskDepreciationRun))
}

func (j *DepreciationRunJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *DepreciationRunJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
