package cli

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/mappings"
	"github.com/odyssey-erp/freightledger/internal/aging"
	"github.com/odyssey-erp/freightledger/internal/allocation"
	"github.com/odyssey-erp/freightledger/internal/app"
	"github.com/odyssey-erp/freightledger/internal/assets"
	"github.com/odyssey-erp/freightledger/internal/platform/db"
	"github.com/odyssey-erp/freightledger/jobs"
)

// Backend is the ledger surface driven by ledgerctl.
type Backend interface {
	Migrate(ctx context.Context) ([]string, error)
	SeedChart(ctx context.Context, chart accounts.Chart) (int, error)
	ActivateMappings(ctx context.Context, f mappings.File, createdBy uuid.UUID) (mappings.Mapping, error)
	RunDepreciation(ctx context.Context, asOf time.Time, createdBy uuid.UUID) (assets.RunResult, error)
	Reconcile(ctx context.Context, repair bool) (jobs.ReconcileSummary, error)
	Aging(ctx context.Context, spec allocation.BookSpec, asOf time.Time, partyID *uuid.UUID) ([]aging.Row, error)
	SystemUser() uuid.UUID
}

// Opener connects a Backend and returns its cleanup.
type Opener func(ctx context.Context) (Backend, func(), error)

// ServicesOpener connects to Postgres and Redis using the environment config.
func ServicesOpener(ctx context.Context) (Backend, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg)
	svc, cleanup, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	system, _ := cfg.SystemUser()
	reconcile := jobs.NewLedgerReconcileJob(svc.Journals,
		[]jobs.OpenItemReconciler{svc.Receivables, svc.Payables},
		svc.Locker, logger, svc.Metrics.Jobs())
	return &servicesBackend{svc: svc, reconcile: reconcile, system: system}, cleanup, nil
}

type servicesBackend struct {
	svc       *app.Services
	reconcile *jobs.LedgerReconcileJob
	system    uuid.UUID
}

func (b *servicesBackend) Migrate(ctx context.Context) ([]string, error) {
	return db.Migrate(ctx, b.svc.Pool)
}

func (b *servicesBackend) SeedChart(ctx context.Context, chart accounts.Chart) (int, error) {
	return b.svc.Accounts.SeedChart(ctx, chart)
}

func (b *servicesBackend) ActivateMappings(ctx context.Context, f mappings.File, createdBy uuid.UUID) (mappings.Mapping, error) {
	return b.svc.Mappings.ActivateFile(ctx, f, createdBy)
}

func (b *servicesBackend) RunDepreciation(ctx context.Context, asOf time.Time, createdBy uuid.UUID) (assets.RunResult, error) {
	return b.svc.Scheduler.CalculateMonthlyDepreciation(ctx, asOf, createdBy)
}

func (b *servicesBackend) Reconcile(ctx context.Context, repair bool) (jobs.ReconcileSummary, error) {
	return b.reconcile.Run(ctx, repair)
}

func (b *servicesBackend) Aging(ctx context.Context, spec allocation.BookSpec, asOf time.Time, partyID *uuid.UUID) ([]aging.Row, error) {
	return b.svc.Aging.Report(ctx, spec, asOf, partyID)
}

func (b *servicesBackend) SystemUser() uuid.UUID {
	return b.system
}
