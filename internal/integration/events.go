package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesInvoicePosted is raised when a freight invoice is issued to a customer.
// Charge amounts are net of tax; Discount reduces the receivable.
type SalesInvoicePosted struct {
	InvoiceID  uuid.UUID       `json:"invoice_id" validate:"required"`
	Number     string          `json:"number" validate:"required"`
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	Date       time.Time       `json:"date" validate:"required"`
	Freight    decimal.Decimal `json:"freight"`
	Shipping   decimal.Decimal `json:"shipping"`
	Customs    decimal.Decimal `json:"customs"`
	Storage    decimal.Decimal `json:"storage"`
	Insurance  decimal.Decimal `json:"insurance"`
	Handling   decimal.Decimal `json:"handling"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	CreatedBy  uuid.UUID       `json:"created_by"`
}

// Receivable is the amount billed to the customer.
func (e SalesInvoicePosted) Receivable() decimal.Decimal {
	return decimal.Sum(e.Freight, e.Shipping, e.Customs, e.Storage, e.Insurance, e.Handling, e.Tax).Sub(e.Discount)
}

// ReceiptPosted is raised when cash is received from a customer.
type ReceiptPosted struct {
	ReceiptID  uuid.UUID       `json:"receipt_id" validate:"required"`
	Number     string          `json:"number" validate:"required"`
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	Date       time.Time       `json:"date" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedBy  uuid.UUID       `json:"created_by"`
}

// SupplierInvoicePosted is raised when a carrier or agent bills us.
type SupplierInvoicePosted struct {
	InvoiceID  uuid.UUID       `json:"invoice_id" validate:"required"`
	Number     string          `json:"number" validate:"required"`
	SupplierID uuid.UUID       `json:"supplier_id" validate:"required"`
	Date       time.Time       `json:"date" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	CreatedBy  uuid.UUID       `json:"created_by"`
}

// Payable is the amount owed to the supplier.
func (e SupplierInvoicePosted) Payable() decimal.Decimal {
	return e.Amount.Add(e.Tax).Sub(e.Discount)
}

// PaymentPosted is raised when we pay a supplier.
type PaymentPosted struct {
	PaymentID  uuid.UUID       `json:"payment_id" validate:"required"`
	Number     string          `json:"number" validate:"required"`
	SupplierID uuid.UUID       `json:"supplier_id" validate:"required"`
	Date       time.Time       `json:"date" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedBy  uuid.UUID       `json:"created_by"`
}
