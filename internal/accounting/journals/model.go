package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPosted   Status = "posted"
	StatusReversed Status = "reversed"
)

// DocumentType identifies the business document behind an entry.
type DocumentType string

const (
	DocumentManual          DocumentType = "manual"
	DocumentSalesInvoice    DocumentType = "sales_invoice"
	DocumentReceipt         DocumentType = "receipt"
	DocumentSupplierInvoice DocumentType = "supplier_invoice"
	DocumentPayment         DocumentType = "payment"
	DocumentDepreciation    DocumentType = "depreciation"
	DocumentReversal        DocumentType = "reversal"
)

// JournalEntry is a posted GL header.
type JournalEntry struct {
	ID           uuid.UUID       `json:"id"`
	EntryNumber  string          `json:"entry_number"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference,omitempty"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	Status       Status          `json:"status"`
	DocumentType DocumentType    `json:"document_type"`
	DocumentID   uuid.UUID       `json:"document_id"`
	ReversalOf   *uuid.UUID      `json:"reversal_of,omitempty"`
	ReversedBy   *uuid.UUID      `json:"reversed_by,omitempty"`
	CreatedBy    uuid.UUID       `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	ReversedAt   *time.Time      `json:"reversed_at,omitempty"`
	Lines        []JournalLine   `json:"lines,omitempty"`
}

// JournalLine is one GL detail row.
type JournalLine struct {
	ID             uuid.UUID       `json:"id"`
	JournalEntryID uuid.UUID       `json:"journal_entry_id"`
	LineNo         int             `json:"line_no"`
	AccountID      uuid.UUID       `json:"account_id"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Description    string          `json:"description,omitempty"`
	VoucherType    string          `json:"voucher_type,omitempty"`
	VoucherNo      string          `json:"voucher_no,omitempty"`
	PostingDate    time.Time       `json:"posting_date"`
	Currency       string          `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
}

// AccountRef is the slice of account state the posting engine needs.
type AccountRef struct {
	ID       uuid.UUID
	Code     string
	Nature   accounts.Nature
	IsGroup  bool
	IsActive bool
	Currency string
}

// PostResult reports the entry created or found for a document.
type PostResult struct {
	JournalEntryID uuid.UUID `json:"journal_entry_id"`
	EntryNumber    string    `json:"entry_number"`
	AlreadyExisted bool      `json:"already_existed"`
}

// ReverseResult reports the reversing entry created or found for an entry.
type ReverseResult struct {
	ReversalEntryID uuid.UUID `json:"reversal_entry_id"`
	EntryNumber     string    `json:"entry_number"`
	AlreadyExisted  bool      `json:"already_existed"`
}

// ListFilter narrows ListEntries.
type ListFilter struct {
	From         *time.Time
	To           *time.Time
	DocumentType DocumentType
	Status       Status
	Limit        int
}

// BalanceDrift is an account whose stored balance disagrees with its GL lines.
type BalanceDrift struct {
	AccountID uuid.UUID       `json:"account_id"`
	Code      string          `json:"code"`
	Stored    decimal.Decimal `json:"stored"`
	Expected  decimal.Decimal `json:"expected"`
}

// ReconcileReport summarises a balance reconciliation.
type ReconcileReport struct {
	Drifts            []BalanceDrift `json:"drifts"`
	UnbalancedEntries []uuid.UUID    `json:"unbalanced_entries"`
	Repaired          int            `json:"repaired"`
}
