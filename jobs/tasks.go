package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/freightledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationRun posts monthly depreciation for every active asset.
	TaskDepreciationRun = "ledger:depreciation_run"
	// TaskLedgerReconcile compares cached balances against source rows.
	TaskLedgerReconcile = "ledger:reconcile"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DepreciationRunPayload configures a depreciation run. An empty AsOf runs the
// month before the task is handled.
type DepreciationRunPayload struct {
	AsOf      string    `json:"as_of,omitempty"`
	CreatedBy uuid.UUID `json:"created_by"`
}

// NewDepreciationRunTask creates an Asynq task for a depreciation run.
func NewDepreciationRunTask(asOf time.Time, createdBy uuid.UUID) (*asynq.Task, error) {
	payload := DepreciationRunPayload{CreatedBy: createdBy}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(time.DateOnly)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// LedgerReconcilePayload configures a reconcile run.
type LedgerReconcilePayload struct {
	Repair bool `json:"repair"`
}

// NewLedgerReconcileTask creates an Asynq task for balance reconciliation.
func NewLedgerReconcileTask(repair bool) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerReconcilePayload{Repair: repair})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
