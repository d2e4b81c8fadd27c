package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/freightledger/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, asOf time.Time, repair bool) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskDepreciationRun, "depreciation":
		payload := jobs.DepreciationRunPayload{}
		if !asOf.IsZero() {
			payload.AsOf = asOf.Format(time.DateOnly)
		}
		return c.client.EnqueueDepreciationRun(ctx, payload)
	case jobs.TaskLedgerReconcile, "reconcile":
		return c.client.EnqueueLedgerReconcile(ctx, repair)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

func taskFor(name string, asOf time.Time, repair bool) (*asynq.Task, error) {
	switch name {
	case jobs.TaskDepreciationRun, "depreciation":
		return jobs.NewDepreciationRunTask(asOf, uuid.Nil)
	case jobs.TaskLedgerReconcile, "reconcile":
		return jobs.NewLedgerReconcileTask(repair)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

func newJobsCommand() *cobra.Command {
	var redisAddr string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background jobs",
	}
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", redisAddrFromEnv(), "Redis address used by the worker")

	var asOf string
	var repair bool
	enqueue := &cobra.Command{
		Use:   "enqueue depreciation|reconcile",
		Short: "Enqueue a job for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date time.Time
			if asOf != "" {
				parsed, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD", asOf)
				}
				date = parsed
			}
			if _, err := taskFor(args[0], date, repair); err != nil {
				return err
			}
			c := NewJobsCLI(redisAddr)
			defer c.Close()
			info, err := c.Trigger(cmd.Context(), args[0], date, repair)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}
	enqueue.Flags().StringVar(&asOf, "as-of", "", "depreciation date (default: previous month end)")
	enqueue.Flags().BoolVar(&repair, "repair", false, "reconcile with repair")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewJobsCLI(redisAddr)
			defer c.Close()
			s, err := c.InspectQueue()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue %s: pending %d, active %d, scheduled %d, retry %d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			return nil
		},
	}

	cmd.AddCommand(enqueue, stats)
	return cmd
}

func redisAddrFromEnv() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "127.0.0.1:6379"
}
