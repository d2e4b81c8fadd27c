package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// Invalidator is told when open-item balances change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// MetricsPort counts allocation outcomes.
type MetricsPort interface {
	ObserveAllocation(book, op, result string)
}

// Service applies vouchers to invoices on one book.
type Service struct {
	spec        BookSpec
	repo        Repository
	invalidator Invalidator
	metrics     MetricsPort
	logger      *slog.Logger
	now         func() time.Time
	newID       func() uuid.UUID
}

// NewService constructs the allocation engine for spec. invalidator and
// metrics may be nil.
func NewService(spec BookSpec, repo Repository, invalidator Invalidator, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		spec:        spec,
		repo:        repo,
		invalidator: invalidator,
		metrics:     metrics,
		logger:      logger.With(slog.String("book", string(spec.Book))),
		now:         time.Now,
		newID:       uuid.New,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Book reports which book the service allocates on.
func (s *Service) Book() Book {
	return s.spec.Book
}

// Allocate applies amount of voucherID to invoiceID. The invoice and then the
// voucher are locked for the duration of the check and write.
func (s *Service) Allocate(ctx context.Context, voucherID, invoiceID uuid.UUID, amount decimal.Decimal, createdBy uuid.UUID) (uuid.UUID, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		s.observe("allocate", "rejected")
		return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	now := s.now()
	id := s.newID()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		voucher, err := tx.LockVoucher(ctx, voucherID)
		if err != nil {
			return err
		}
		if inv.Status == DocumentVoid || voucher.Status == DocumentVoid {
			return ErrDocumentVoid
		}
		if inv.PartyID != voucher.PartyID {
			return ErrPartyMismatch
		}
		invoiceAllocated, err := tx.ActiveTotalForInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		outstanding := Outstanding(inv.Total, invoiceAllocated)
		if !outstanding.IsPositive() {
			return fmt.Errorf("%w: %s", shared.ErrInvoiceNotOutstanding, inv.Number)
		}
		if amount.GreaterThan(outstanding) {
			return fmt.Errorf("%w: %s exceeds invoice %s outstanding %s", shared.ErrOverAllocation,
				amount.StringFixed(2), inv.Number, outstanding.StringFixed(2))
		}
		voucherAllocated, err := tx.ActiveTotalForVoucher(ctx, voucherID)
		if err != nil {
			return err
		}
		unallocated := voucher.Amount.Sub(voucherAllocated)
		if amount.GreaterThan(unallocated) {
			return fmt.Errorf("%w: %s exceeds %s unallocated %s", shared.ErrOverAllocation,
				amount.StringFixed(2), voucher.Number, unallocated.StringFixed(2))
		}
		if err := tx.InsertAllocation(ctx, Allocation{
			ID:        id,
			VoucherID: voucherID,
			InvoiceID: invoiceID,
			Amount:    amount,
			Status:    StatusActive,
			CreatedBy: createdBy,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := tx.SetInvoiceOutstanding(ctx, invoiceID, outstanding.Sub(amount)); err != nil {
			return err
		}
		return tx.SetVoucherUnallocated(ctx, voucherID, unallocated.Sub(amount))
	})
	if err != nil {
		return uuid.Nil, s.fail("allocate", err)
	}
	s.observe("allocate", "ok")
	s.invalidate(ctx)
	return id, nil
}

// Deallocate reverses an allocation and restores the invoice and voucher
// balances. Deallocating a reversed allocation is a no-op.
func (s *Service) Deallocate(ctx context.Context, allocationID uuid.UUID) error {
	now := s.now()
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		alloc, err := tx.GetAllocationForUpdate(ctx, allocationID)
		if err != nil {
			return err
		}
		if alloc.Status == StatusReversed {
			return nil
		}
		inv, err := tx.LockInvoice(ctx, alloc.InvoiceID)
		if err != nil {
			return err
		}
		voucher, err := tx.LockVoucher(ctx, alloc.VoucherID)
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, allocationID, now); err != nil {
			return err
		}
		invoiceAllocated, err := tx.ActiveTotalForInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		if err := tx.SetInvoiceOutstanding(ctx, inv.ID, Outstanding(inv.Total, invoiceAllocated)); err != nil {
			return err
		}
		voucherAllocated, err := tx.ActiveTotalForVoucher(ctx, voucher.ID)
		if err != nil {
			return err
		}
		changed = true
		return tx.SetVoucherUnallocated(ctx, voucher.ID, voucher.Amount.Sub(voucherAllocated))
	})
	if err != nil {
		return s.fail("deallocate", err)
	}
	if !changed {
		s.observe("deallocate", "noop")
		return nil
	}
	s.observe("deallocate", "ok")
	s.invalidate(ctx)
	return nil
}

// Outstanding returns the unsettled amount of an invoice.
func (s *Service) Outstanding(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return inv.Outstanding, nil
}

// ListByInvoice returns every allocation, active or reversed, for an invoice.
func (s *Service) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}

func (s *Service) fail(op string, err error) error {
	if isDomain(err) {
		s.observe(op, "rejected")
		return err
	}
	s.observe(op, "failed")
	s.logger.Error(op, slog.Any("error", err))
	return shared.WrapInfra(op, err)
}

func isDomain(err error) bool {
	if shared.IsDomain(err) {
		return true
	}
	for _, target := range []error{ErrInvoiceNotFound, ErrVoucherNotFound, ErrAllocationNotFound, ErrInvalidAmount, ErrPartyMismatch, ErrDocumentVoid} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) observe(op, result string) {
	if s.metrics != nil {
		s.metrics.ObserveAllocation(string(s.spec.Book), op, result)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate aging cache", slog.Any("error", err))
	}
}
