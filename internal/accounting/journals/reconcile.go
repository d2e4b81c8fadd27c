package journals

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// Reconcile compares stored account balances against GL lines and reports
// entries whose lines do not balance. With repair set, drifted accounts are
// locked and their balance recomputed.
func (s *Service) Reconcile(ctx context.Context, repair bool) (ReconcileReport, error) {
	drifts, err := s.repo.BalanceDrift(ctx)
	if err != nil {
		return ReconcileReport{}, shared.WrapInfra("reconcile balances", err)
	}
	unbalanced, err := s.repo.UnbalancedEntries(ctx)
	if err != nil {
		return ReconcileReport{}, shared.WrapInfra("reconcile entries", err)
	}
	report := ReconcileReport{Drifts: drifts, UnbalancedEntries: unbalanced}
	for _, d := range drifts {
		s.logger.Warn("account balance drift",
			slog.String("account", d.Code),
			slog.String("stored", d.Stored.StringFixed(2)),
			slog.String("expected", d.Expected.StringFixed(2)))
	}
	for _, id := range unbalanced {
		s.logger.Error("unbalanced journal entry", slog.String("entry_id", id.String()))
	}
	if !repair || len(drifts) == 0 {
		return report, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, d := range drifts {
			if _, err := tx.RecomputeBalance(ctx, d.AccountID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, shared.WrapInfra("repair balances", err)
	}
	report.Repaired = len(drifts)
	return report, nil
}
