package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/accounting/journals"
	"github.com/odyssey-erp/freightledger/internal/accounting/mappings"
	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	PostDocument(ctx context.Context, in journals.PostingInput) (journals.PostResult, error)
}

// Resolver maps transaction categories onto accounts.
type Resolver interface {
	ResolveAll(ctx context.Context, categories ...mappings.Category) (map[mappings.Category]uuid.UUID, error)
}

// Invalidator is told when an invoice event changes what is outstanding.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Hooks turns operational document events into ledger postings.
type Hooks struct {
	ledger      Ledger
	resolver    Resolver
	invalidator Invalidator
	logger      *slog.Logger
}

// NewHooks constructs integration hooks. invalidator may be nil.
func NewHooks(ledger Ledger, resolver Resolver, invalidator Invalidator, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, resolver: resolver, invalidator: invalidator, logger: logger}
}

func (h *Hooks) invalidate(ctx context.Context, res journals.PostResult) {
	if h.invalidator == nil || res.JournalEntryID == uuid.Nil || res.AlreadyExisted {
		return
	}
	if err := h.invalidator.Invalidate(ctx); err != nil {
		h.logger.Warn("invalidate aging cache", slog.Any("error", err))
	}
}

type leg struct {
	category mappings.Category
	debit    bool
	amount   decimal.Decimal
}

func (h *Hooks) post(ctx context.Context, docType journals.DocumentType, docID uuid.UUID, number string, in journals.PostingInput, legs []leg) (journals.PostResult, error) {
	document := fmt.Sprintf("%s %s", docType, number)
	if docID == uuid.Nil {
		return journals.PostResult{}, fmt.Errorf("integration: %s: document id required", document)
	}
	if in.Date.IsZero() {
		return journals.PostResult{}, fmt.Errorf("integration: %s: date required", document)
	}
	categories := make([]mappings.Category, 0, len(legs))
	kept := legs[:0]
	for _, l := range legs {
		if l.amount.IsNegative() {
			return journals.PostResult{}, fmt.Errorf("%w: %s has negative %s", shared.ErrInvalidLine, document, l.category)
		}
		if l.amount.IsZero() {
			continue
		}
		kept = append(kept, l)
		categories = append(categories, l.category)
	}
	if len(kept) == 0 {
		return journals.PostResult{}, nil
	}
	accounts, err := h.resolver.ResolveAll(ctx, categories...)
	if err != nil {
		return journals.PostResult{}, wrapLedgerPostError(document, err)
	}
	in.DocumentType = docType
	in.DocumentID = docID
	in.Reference = number
	for _, l := range kept {
		line := journals.PostingLine{
			AccountID:   accounts[l.category],
			Description: string(l.category),
			VoucherType: string(docType),
			VoucherNo:   number,
		}
		if l.debit {
			line.Debit = l.amount
		} else {
			line.Credit = l.amount
		}
		in.Lines = append(in.Lines, line)
	}
	res, err := h.ledger.PostDocument(ctx, in)
	if err != nil {
		return journals.PostResult{}, wrapLedgerPostError(document, err)
	}
	return res, nil
}

// HandleSalesInvoicePosted debits receivables and discounts and credits each
// revenue stream and output tax.
func (h *Hooks) HandleSalesInvoicePosted(ctx context.Context, evt SalesInvoicePosted) (journals.PostResult, error) {
	if h == nil || h.ledger == nil || h.resolver == nil {
		return journals.PostResult{}, errors.New("integration: hooks not configured")
	}
	res, err := h.post(ctx, journals.DocumentSalesInvoice, evt.InvoiceID, evt.Number, journals.PostingInput{
		Date:        evt.Date,
		Description: fmt.Sprintf("Sales invoice %s", evt.Number),
		CreatedBy:   evt.CreatedBy,
	}, []leg{
		{mappings.CategoryAccountsReceivable, true, evt.Receivable()},
		{mappings.CategoryDiscount, true, evt.Discount},
		{mappings.CategorySalesRevenue, false, evt.Freight},
		{mappings.CategoryShippingRevenue, false, evt.Shipping},
		{mappings.CategoryCustomsClearance, false, evt.Customs},
		{mappings.CategoryStorage, false, evt.Storage},
		{mappings.CategoryInsurance, false, evt.Insurance},
		{mappings.CategoryHandlingFee, false, evt.Handling},
		{mappings.CategorySalesTax, false, evt.Tax},
	})
	if err != nil {
		return res, err
	}
	h.invalidate(ctx, res)
	return res, nil
}

// HandleReceiptPosted debits cash and credits receivables.
func (h *Hooks) HandleReceiptPosted(ctx context.Context, evt ReceiptPosted) (journals.PostResult, error) {
	if h == nil || h.ledger == nil || h.resolver == nil {
		return journals.PostResult{}, errors.New("integration: hooks not configured")
	}
	return h.post(ctx, journals.DocumentReceipt, evt.ReceiptID, evt.Number, journals.PostingInput{
		Date:        evt.Date,
		Description: fmt.Sprintf("Receipt %s", evt.Number),
		CreatedBy:   evt.CreatedBy,
	}, []leg{
		{mappings.CategoryCash, true, evt.Amount},
		{mappings.CategoryAccountsReceivable, false, evt.Amount},
	})
}

// HandleSupplierInvoicePosted debits purchase expense and input tax and
// credits payables and purchase discounts.
func (h *Hooks) HandleSupplierInvoicePosted(ctx context.Context, evt SupplierInvoicePosted) (journals.PostResult, error) {
	if h == nil || h.ledger == nil || h.resolver == nil {
		return journals.PostResult{}, errors.New("integration: hooks not configured")
	}
	res, err := h.post(ctx, journals.DocumentSupplierInvoice, evt.InvoiceID, evt.Number, journals.PostingInput{
		Date:        evt.Date,
		Description: fmt.Sprintf("Supplier invoice %s", evt.Number),
		CreatedBy:   evt.CreatedBy,
	}, []leg{
		{mappings.CategoryPurchaseExpense, true, evt.Amount},
		{mappings.CategoryPurchaseTax, true, evt.Tax},
		{mappings.CategoryPurchaseDiscount, false, evt.Discount},
		{mappings.CategoryAccountsPayable, false, evt.Payable()},
	})
	if err != nil {
		return res, err
	}
	h.invalidate(ctx, res)
	return res, nil
}

// HandlePaymentPosted debits payables and credits cash.
func (h *Hooks) HandlePaymentPosted(ctx context.Context, evt PaymentPosted) (journals.PostResult, error) {
	if h == nil || h.ledger == nil || h.resolver == nil {
		return journals.PostResult{}, errors.New("integration: hooks not configured")
	}
	return h.post(ctx, journals.DocumentPayment, evt.PaymentID, evt.Number, journals.PostingInput{
		Date:        evt.Date,
		Description: fmt.Sprintf("Payment %s", evt.Number),
		CreatedBy:   evt.CreatedBy,
	}, []leg{
		{mappings.CategoryAccountsPayable, true, evt.Amount},
		{mappings.CategoryCash, false, evt.Amount},
	})
}
