package allocation

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// Reconcile compares cached outstanding and unallocated amounts against the
// active allocations. With repair set, each drifted row is locked and its
// cache recomputed.
func (s *Service) Reconcile(ctx context.Context, repair bool) (ReconcileReport, error) {
	drifts, err := s.repo.CacheDrift(ctx)
	if err != nil {
		return ReconcileReport{}, shared.WrapInfra("reconcile open items", err)
	}
	report := ReconcileReport{Book: s.spec.Book, Drifts: drifts}
	for _, d := range drifts {
		s.logger.Warn("open item drift",
			slog.String("kind", string(d.Kind)),
			slog.String("number", d.Number),
			slog.String("stored", d.Stored.StringFixed(2)),
			slog.String("expected", d.Expected.StringFixed(2)))
	}
	if !repair || len(drifts) == 0 {
		return report, nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, d := range drifts {
			switch d.Kind {
			case DriftInvoice:
				inv, err := tx.LockInvoice(ctx, d.ID)
				if err != nil {
					return err
				}
				allocated, err := tx.ActiveTotalForInvoice(ctx, inv.ID)
				if err != nil {
					return err
				}
				if err := tx.SetInvoiceOutstanding(ctx, inv.ID, Outstanding(inv.Total, allocated)); err != nil {
					return err
				}
			case DriftVoucher:
				v, err := tx.LockVoucher(ctx, d.ID)
				if err != nil {
					return err
				}
				allocated, err := tx.ActiveTotalForVoucher(ctx, v.ID)
				if err != nil {
					return err
				}
				if err := tx.SetVoucherUnallocated(ctx, v.ID, v.Amount.Sub(allocated)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return report, shared.WrapInfra("repair open items", err)
	}
	report.Repaired = len(drifts)
	s.invalidate(ctx)
	return report, nil
}
