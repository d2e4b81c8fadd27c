package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/freightledger/internal/shared"
)

// AuditPort records ledger actions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// MetricsPort counts posting outcomes.
type MetricsPort interface {
	ObservePosting(documentType, result string)
}

// Service posts documents into the general ledger.
type Service struct {
	repo    Repository
	audit   AuditPort
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewService constructs the posting engine. audit and metrics may be nil.
func NewService(repo Repository, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, metrics: metrics, logger: logger, now: time.Now, newID: uuid.New}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries returns entry headers matching filter.
func (s *Service) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx, filter)
}

// VoucherPosted reports whether a live posting carries voucherNo.
func (s *Service) VoucherPosted(ctx context.Context, voucherNo string) (bool, error) {
	return s.repo.VoucherPosted(ctx, voucherNo)
}

// PostDocument writes a balanced entry for a business document. A document
// that already has a live entry returns that entry with AlreadyExisted set.
func (s *Service) PostDocument(ctx context.Context, in PostingInput) (PostResult, error) {
	if err := in.Validate(); err != nil {
		s.observe(in.DocumentType, "rejected")
		return PostResult{}, err
	}
	debit, credit, _ := totals(in.Lines)
	now := s.now()

	var result PostResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, found, err := tx.FindPosted(ctx, in.DocumentType, in.DocumentID)
		if err != nil {
			return err
		}
		if found {
			result = PostResult{JournalEntryID: existing.ID, EntryNumber: existing.EntryNumber, AlreadyExisted: true}
			return nil
		}
		refs, err := tx.LockAccounts(ctx, in.accountIDs())
		if err != nil {
			return err
		}
		if err := checkPostable(in.Lines, refs); err != nil {
			return err
		}
		entry, err := s.insertEntry(ctx, tx, entryDraft{
			docType:     in.DocumentType,
			docID:       in.DocumentID,
			date:        in.Date,
			description: in.Description,
			reference:   in.Reference,
			createdBy:   in.CreatedBy,
			debit:       debit,
			credit:      credit,
			lines:       in.Lines,
			refs:        refs,
			at:          now,
		})
		if err != nil {
			return err
		}
		result = PostResult{JournalEntryID: entry.ID, EntryNumber: entry.EntryNumber}
		return nil
	})
	if errors.Is(err, shared.ErrDuplicatePosting) {
		existing, found, ferr := s.repo.FindPosted(ctx, in.DocumentType, in.DocumentID)
		switch {
		case ferr != nil:
			err = ferr
		case found:
			s.observe(in.DocumentType, "duplicate")
			return PostResult{JournalEntryID: existing.ID, EntryNumber: existing.EntryNumber, AlreadyExisted: true}, nil
		default:
			// The competing entry was reversed before it could be read back.
			err = fmt.Errorf("%s %s: concurrent posting no longer live", in.DocumentType, in.DocumentID)
		}
	}
	if err != nil {
		if shared.IsDomain(err) {
			s.observe(in.DocumentType, "rejected")
			return PostResult{}, err
		}
		s.observe(in.DocumentType, "failed")
		s.logger.Error("post document", slog.String("document_type", string(in.DocumentType)),
			slog.String("document_id", in.DocumentID.String()), slog.Any("error", err))
		return PostResult{}, shared.WrapInfra("post document", err)
	}
	if result.AlreadyExisted {
		s.observe(in.DocumentType, "duplicate")
		return result, nil
	}
	s.observe(in.DocumentType, "posted")
	s.record(ctx, internalShared.AuditLog{
		ActorID:  in.CreatedBy,
		Action:   "journal.post",
		Entity:   "journal_entry",
		EntityID: result.JournalEntryID.String(),
		Meta: map[string]any{
			"entry_number":  result.EntryNumber,
			"document_type": string(in.DocumentType),
			"document_id":   in.DocumentID.String(),
			"total":         debit.StringFixed(2),
		},
		At: now,
	})
	return result, nil
}

// ReverseEntry posts the mirror image of an entry and marks it reversed.
// Reversing the same entry twice returns the first reversal.
func (s *Service) ReverseEntry(ctx context.Context, entryID uuid.UUID, reason string, createdBy uuid.UUID) (ReverseResult, error) {
	if entryID == uuid.Nil {
		return ReverseResult{}, fmt.Errorf("%w: entry id required", shared.ErrInvalidLine)
	}
	now := s.now()
	var result ReverseResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if original.DocumentType == DocumentReversal {
			return fmt.Errorf("%w: entry %s is itself a reversal", shared.ErrInvalidStatus, original.EntryNumber)
		}
		existing, found, err := tx.FindPosted(ctx, DocumentReversal, original.ID)
		if err != nil {
			return err
		}
		if found {
			result = ReverseResult{ReversalEntryID: existing.ID, EntryNumber: existing.EntryNumber, AlreadyExisted: true}
			return nil
		}
		if original.Status != StatusPosted {
			return fmt.Errorf("%w: entry %s is %s", shared.ErrInvalidStatus, original.EntryNumber, original.Status)
		}
		lines := swapLines(original.Lines)
		refs, err := tx.LockAccounts(ctx, sortedAccountIDs(lines))
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, ok := refs[line.AccountID]; !ok {
				return fmt.Errorf("%w: %s", shared.ErrAccountNotFound, line.AccountID)
			}
		}
		description := fmt.Sprintf("Reversal of %s", original.EntryNumber)
		if reason != "" {
			description += ": " + reason
		}
		reversalOf := original.ID
		entry, err := s.insertEntry(ctx, tx, entryDraft{
			docType:     DocumentReversal,
			docID:       original.ID,
			date:        dateOnly(now),
			description: description,
			reference:   original.Reference,
			createdBy:   createdBy,
			debit:       original.TotalCredit,
			credit:      original.TotalDebit,
			lines:       lines,
			refs:        refs,
			reversalOf:  &reversalOf,
			at:          now,
		})
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, original.ID, entry.ID, now); err != nil {
			return err
		}
		result = ReverseResult{ReversalEntryID: entry.ID, EntryNumber: entry.EntryNumber}
		return nil
	})
	if err != nil {
		if shared.IsDomain(err) {
			return ReverseResult{}, err
		}
		s.logger.Error("reverse entry", slog.String("entry_id", entryID.String()), slog.Any("error", err))
		return ReverseResult{}, shared.WrapInfra("reverse entry", err)
	}
	if result.AlreadyExisted {
		s.observe(DocumentReversal, "duplicate")
	} else {
		s.observe(DocumentReversal, "posted")
		s.record(ctx, internalShared.AuditLog{
			ActorID:  createdBy,
			Action:   "journal.reverse",
			Entity:   "journal_entry",
			EntityID: entryID.String(),
			Meta: map[string]any{
				"reversal_entry_id": result.ReversalEntryID.String(),
				"entry_number":      result.EntryNumber,
				"reason":            reason,
			},
			At: now,
		})
	}
	return result, nil
}

type entryDraft struct {
	docType     DocumentType
	docID       uuid.UUID
	date        time.Time
	description string
	reference   string
	createdBy   uuid.UUID
	debit       decimal.Decimal
	credit      decimal.Decimal
	lines       []PostingLine
	refs        map[uuid.UUID]AccountRef
	reversalOf  *uuid.UUID
	at          time.Time
}

// insertEntry writes header, lines and balance movements. Balances are
// updated in account id order, matching the lock order.
func (s *Service) insertEntry(ctx context.Context, tx TxRepository, d entryDraft) (JournalEntry, error) {
	number, err := tx.NextEntryNumber(ctx)
	if err != nil {
		return JournalEntry{}, err
	}
	entry := JournalEntry{
		ID:           s.newID(),
		EntryNumber:  number,
		Date:         dateOnly(d.date),
		Description:  d.description,
		Reference:    d.reference,
		TotalDebit:   d.debit,
		TotalCredit:  d.credit,
		Status:       StatusPosted,
		DocumentType: d.docType,
		DocumentID:   d.docID,
		ReversalOf:   d.reversalOf,
		CreatedBy:    d.createdBy,
		CreatedAt:    d.at,
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return JournalEntry{}, err
	}
	lines := make([]JournalLine, 0, len(d.lines))
	deltas := make(map[uuid.UUID]decimal.Decimal, len(d.refs))
	for i, pl := range d.lines {
		ref := d.refs[pl.AccountID]
		line := JournalLine{
			ID:             s.newID(),
			JournalEntryID: entry.ID,
			LineNo:         i + 1,
			AccountID:      pl.AccountID,
			Debit:          pl.Debit,
			Credit:         pl.Credit,
			Description:    pl.Description,
			VoucherType:    pl.VoucherType,
			VoucherNo:      pl.VoucherNo,
			PostingDate:    entry.Date,
			Currency:       pl.Currency,
			ExchangeRate:   pl.ExchangeRate,
		}
		if line.Currency == "" {
			line.Currency = ref.Currency
		}
		if line.ExchangeRate.IsZero() {
			line.ExchangeRate = decimal.NewFromInt(1)
		}
		lines = append(lines, line)
		deltas[pl.AccountID] = deltas[pl.AccountID].Add(ref.Nature.Signed(pl.Debit, pl.Credit))
	}
	if err := tx.InsertLines(ctx, lines); err != nil {
		return JournalEntry{}, err
	}
	for _, id := range sortedAccountIDs(d.lines) {
		if err := tx.ApplyBalance(ctx, id, deltas[id]); err != nil {
			return JournalEntry{}, err
		}
	}
	entry.Lines = lines
	return entry, nil
}

func checkPostable(lines []PostingLine, refs map[uuid.UUID]AccountRef) error {
	for idx, line := range lines {
		ref, ok := refs[line.AccountID]
		if !ok {
			return fmt.Errorf("%w: line %d account %s", shared.ErrAccountNotFound, idx+1, line.AccountID)
		}
		if ref.IsGroup {
			return fmt.Errorf("%w: line %d account %s", shared.ErrPostingToGroupAccount, idx+1, ref.Code)
		}
		if !ref.IsActive {
			return fmt.Errorf("%w: line %d account %s", shared.ErrAccountInactive, idx+1, ref.Code)
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) observe(docType DocumentType, result string) {
	if s.metrics != nil {
		s.metrics.ObservePosting(string(docType), result)
	}
}

func (s *Service) record(ctx context.Context, log internalShared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", log.Action), slog.Any("error", err))
	}
}
