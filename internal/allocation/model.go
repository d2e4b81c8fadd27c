package allocation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book selects the receivable or payable side of the ledger.
type Book string

const (
	BookReceivables Book = "ar"
	BookPayables    Book = "ap"
)

// BookSpec names the tables behind a book.
type BookSpec struct {
	Book            Book
	InvoiceTable    string
	VoucherTable    string
	AllocationTable string
	VoucherColumn   string
	PartyColumn     string
}

var (
	// Receivables allocates receipts against sales invoices.
	Receivables = BookSpec{
		Book:            BookReceivables,
		InvoiceTable:    "sales_invoices",
		VoucherTable:    "receipts",
		AllocationTable: "ar_allocations",
		VoucherColumn:   "receipt_id",
		PartyColumn:     "customer_id",
	}
	// Payables allocates payments against supplier invoices.
	Payables = BookSpec{
		Book:            BookPayables,
		InvoiceTable:    "supplier_invoices",
		VoucherTable:    "payments",
		AllocationTable: "ap_allocations",
		VoucherColumn:   "payment_id",
		PartyColumn:     "supplier_id",
	}
)

// SpecFor returns the spec registered for book.
func SpecFor(book Book) (BookSpec, bool) {
	switch book {
	case BookReceivables:
		return Receivables, true
	case BookPayables:
		return Payables, true
	}
	return BookSpec{}, false
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("allocation: invoice not found")
	// ErrVoucherNotFound indicates a missing receipt or payment.
	ErrVoucherNotFound = errors.New("allocation: voucher not found")
	// ErrAllocationNotFound indicates a missing allocation.
	ErrAllocationNotFound = errors.New("allocation: allocation not found")
	// ErrInvalidAmount indicates a non-positive or over-precise amount.
	ErrInvalidAmount = errors.New("allocation: amount must be positive with at most two decimals")
	// ErrPartyMismatch indicates voucher and invoice belong to different parties.
	ErrPartyMismatch = errors.New("allocation: voucher and invoice belong to different parties")
	// ErrDocumentVoid indicates a voided invoice or voucher.
	ErrDocumentVoid = errors.New("allocation: document is void")
)

// DocumentStatus is the lifecycle of an invoice or voucher.
type DocumentStatus string

const (
	DocumentOpen DocumentStatus = "open"
	DocumentVoid DocumentStatus = "void"
)

// Invoice is an open item on either book.
type Invoice struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	PartyID     uuid.UUID       `json:"party_id"`
	IssueDate   time.Time       `json:"issue_date"`
	DueDate     time.Time       `json:"due_date"`
	Total       decimal.Decimal `json:"total"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      DocumentStatus  `json:"status"`
}

// Voucher is a receipt or payment.
type Voucher struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	PartyID     uuid.UUID       `json:"party_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Unallocated decimal.Decimal `json:"unallocated"`
	Status      DocumentStatus  `json:"status"`
}

// Status is the lifecycle of an allocation.
type Status string

const (
	StatusActive   Status = "active"
	StatusReversed Status = "reversed"
)

// Allocation applies part of a voucher to an invoice.
type Allocation struct {
	ID         uuid.UUID       `json:"id"`
	VoucherID  uuid.UUID       `json:"voucher_id"`
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	CreatedBy  uuid.UUID       `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	ReversedAt *time.Time      `json:"reversed_at,omitempty"`
}

// Outstanding is the unsettled part of an invoice total given the sum of its
// active allocations.
func Outstanding(total, allocated decimal.Decimal) decimal.Decimal {
	return total.Sub(allocated)
}

// DriftKind names which cached column drifted.
type DriftKind string

const (
	DriftInvoice DriftKind = "invoice"
	DriftVoucher DriftKind = "voucher"
)

// CacheDrift is an invoice outstanding or voucher unallocated amount that
// disagrees with the active allocations.
type CacheDrift struct {
	Kind     DriftKind       `json:"kind"`
	ID       uuid.UUID       `json:"id"`
	Number   string          `json:"number"`
	Stored   decimal.Decimal `json:"stored"`
	Expected decimal.Decimal `json:"expected"`
}

// ReconcileReport summarises an open-item reconciliation.
type ReconcileReport struct {
	Book     Book         `json:"book"`
	Drifts   []CacheDrift `json:"drifts"`
	Repaired int          `json:"repaired"`
}
