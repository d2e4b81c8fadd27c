package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/freightledger/internal/accounting/journals"
	"github.com/odyssey-erp/freightledger/internal/allocation"
	"github.com/odyssey-erp/freightledger/internal/assets"
	jobmetrics "github.com/odyssey-erp/freightledger/internal/jobs"
	"github.com/odyssey-erp/freightledger/internal/shared"
)

type stubScheduler struct {
	asOf      time.Time
	createdBy uuid.UUID
	result    assets.RunResult
	err       error
}

func (s *stubScheduler) CalculateMonthlyDepreciation(_ context.Context, asOf time.Time, createdBy uuid.UUID) (assets.RunResult, error) {
	s.asOf = asOf
	s.createdBy = createdBy
	return s.result, s.err
}

func TestDepreciationRunDefaultsToPreviousMonth(t *testing.T) {
	system := uuid.New()
	sched := &stubScheduler{result: assets.RunResult{Period: "2024-02", CreatedEntries: 4}}
	job := NewDepreciationRunJob(sched, system, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.WithClock(func() time.Time { return time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC) })

	task, err := NewDepreciationRunTask(time.Time{}, uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), sched.asOf)
	require.Equal(t, system, sched.createdBy)
}

func TestDepreciationRunPayloadAndFailures(t *testing.T) {
	user := uuid.New()
	sched := &stubScheduler{result: assets.RunResult{
		Period: "2024-05",
		Failed: []assets.Failed{{AssetRef: assets.AssetRef{AssetNumber: "FA-1"}, Error: "boom"}},
	}}
	job := NewDepreciationRunJob(sched, uuid.New(), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewDepreciationRunTask(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), user)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorContains(t, err, "1 assets failed")
	require.Equal(t, user, sched.createdBy)
	require.Equal(t, "2024-05-31", sched.asOf.Format(time.DateOnly))

	err = job.Handle(context.Background(), asynq.NewTask(TaskDepreciationRun, []byte(`{"as_of":"May"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	sched.err = errors.New("db down")
	require.EqualError(t, job.Handle(context.Background(), task), "db down")

	var nilJob *DepreciationRunJob
	require.Error(t, nilJob.Handle(context.Background(), task))
}

type stubBalances struct {
	report  journals.ReconcileReport
	repairs []bool
}

func (s *stubBalances) Reconcile(_ context.Context, repair bool) (journals.ReconcileReport, error) {
	s.repairs = append(s.repairs, repair)
	r := s.report
	if repair {
		r.Repaired = len(r.Drifts)
	}
	return r, nil
}

type stubOpenItems struct {
	report allocation.ReconcileReport
	err    error
}

func (s *stubOpenItems) Reconcile(_ context.Context, repair bool) (allocation.ReconcileReport, error) {
	r := s.report
	if repair {
		r.Repaired = len(r.Drifts)
	}
	return r, s.err
}

func TestLedgerReconcileAggregatesReports(t *testing.T) {
	balances := &stubBalances{report: journals.ReconcileReport{Drifts: []journals.BalanceDrift{{Code: "1.1.2", Stored: decimal.Zero, Expected: decimal.NewFromInt(5)}}}}
	ar := &stubOpenItems{report: allocation.ReconcileReport{Book: allocation.BookReceivables, Drifts: []allocation.CacheDrift{{Kind: allocation.DriftInvoice}, {Kind: allocation.DriftVoucher}}}}
	ap := &stubOpenItems{report: allocation.ReconcileReport{Book: allocation.BookPayables}}
	job := NewLedgerReconcileJob(balances, []OpenItemReconciler{ar, ap}, nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	summary, err := job.Run(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Drift())
	require.Zero(t, summary.Repaired())
	require.Len(t, summary.OpenItems, 2)

	task, err := NewLedgerReconcileTask(true)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []bool{false, true}, balances.repairs)

	ap.err = errors.New("timeout")
	_, err = job.Run(context.Background(), false)
	require.EqualError(t, err, "timeout")
}

func TestLedgerReconcileSkipsWhenLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redislock.New(client)
	held, err := locker.Obtain(context.Background(), shared.ReconcileLockKey(), time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	balances := &stubBalances{}
	job := NewLedgerReconcileJob(balances, nil, locker, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	_, err = job.Run(context.Background(), true)
	require.NoError(t, err)
	require.Empty(t, balances.repairs)
}

func TestTaskPayloads(t *testing.T) {
	task, err := NewLedgerReconcileTask(true)
	require.NoError(t, err)
	require.Equal(t, TaskLedgerReconcile, task.Type())
	var payload LedgerReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.Repair)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"failed":0}`, rec.Body.String())
}
