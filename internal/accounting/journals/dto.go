package journals

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// PostingLine describes one line of a document posting.
type PostingLine struct {
	AccountID    uuid.UUID
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Description  string
	VoucherType  string
	VoucherNo    string
	Currency     string
	ExchangeRate decimal.Decimal
}

// PostingInput groups fields required to post a document.
type PostingInput struct {
	DocumentType DocumentType
	DocumentID   uuid.UUID
	Date         time.Time
	Description  string
	Reference    string
	CreatedBy    uuid.UUID
	Lines        []PostingLine
}

// Validate checks shape and balance before anything touches storage.
func (in PostingInput) Validate() error {
	if in.DocumentType == "" || in.DocumentType == DocumentReversal {
		return fmt.Errorf("%w: document type %q", shared.ErrInvalidLine, in.DocumentType)
	}
	if in.DocumentID == uuid.Nil {
		return fmt.Errorf("%w: document id required", shared.ErrInvalidLine)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: posting date required", shared.ErrInvalidLine)
	}
	if len(in.Lines) < 2 {
		return fmt.Errorf("%w: at least two lines required", shared.ErrUnbalancedEntry)
	}
	debit, credit, err := totals(in.Lines)
	if err != nil {
		return err
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s != credit %s", shared.ErrUnbalancedEntry, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

func totals(lines []PostingLine) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range lines {
		if line.AccountID == uuid.Nil {
			return debit, credit, fmt.Errorf("%w: line %d missing account", shared.ErrInvalidLine, idx+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return debit, credit, fmt.Errorf("%w: line %d negative amount", shared.ErrInvalidLine, idx+1)
		}
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return debit, credit, fmt.Errorf("%w: line %d needs exactly one of debit or credit", shared.ErrInvalidLine, idx+1)
		}
		if !line.Debit.Equal(line.Debit.Round(2)) || !line.Credit.Equal(line.Credit.Round(2)) {
			return debit, credit, fmt.Errorf("%w: line %d has more than two decimals", shared.ErrInvalidLine, idx+1)
		}
		if line.ExchangeRate.IsNegative() {
			return debit, credit, fmt.Errorf("%w: line %d negative exchange rate", shared.ErrInvalidLine, idx+1)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit, nil
}

func (in PostingInput) accountIDs() []uuid.UUID {
	return sortedAccountIDs(in.Lines)
}

func sortedAccountIDs(lines []PostingLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// swapLines mirrors every line of an entry for its reversal.
func swapLines(lines []JournalLine) []PostingLine {
	out := make([]PostingLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLine{
			AccountID:    line.AccountID,
			Debit:        line.Credit,
			Credit:       line.Debit,
			Description:  line.Description,
			VoucherType:  line.VoucherType,
			VoucherNo:    line.VoucherNo,
			Currency:     line.Currency,
			ExchangeRate: line.ExchangeRate,
		})
	}
	return out
}
