package aging

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/allocation"
)

// Bucket labels an overdue range.
type Bucket string

const (
	BucketCurrent Bucket = "current"
	Bucket1To30   Bucket = "1-30"
	Bucket31To60  Bucket = "31-60"
	Bucket61To90  Bucket = "61-90"
	BucketOver90  Bucket = "90+"
)

var bucketOrder = []Bucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

// Buckets lists the buckets in report order.
func Buckets() []Bucket {
	return append([]Bucket(nil), bucketOrder...)
}

// BucketFor places a due date relative to asOf.
func BucketFor(asOf, due time.Time) Bucket {
	days := int(dateOnly(asOf).Sub(dateOnly(due)).Hours() / 24)
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// Row is one party's outstanding total inside a bucket.
type Row struct {
	PartyID uuid.UUID       `json:"party_id"`
	Bucket  Bucket          `json:"bucket"`
	Amount  decimal.Decimal `json:"amount"`
}

// OpenItem is an invoice with the allocations that applied to it as of a date.
type OpenItem struct {
	InvoiceID uuid.UUID
	PartyID   uuid.UUID
	DueDate   time.Time
	Total     decimal.Decimal
	Allocated decimal.Decimal
}

// Outstanding applies the allocation formula to the item.
func (i OpenItem) Outstanding() decimal.Decimal {
	return allocation.Outstanding(i.Total, i.Allocated)
}

// AppliedAsOf reports whether an allocation counted against its invoice at the
// end of asOf.
func AppliedAsOf(a allocation.Allocation, asOf time.Time) bool {
	cutoff := endOfDay(asOf)
	if !a.CreatedAt.Before(cutoff) {
		return false
	}
	return a.ReversedAt == nil || !a.ReversedAt.Before(cutoff)
}

// Total sums the amounts of rows.
func Total(rows []Row) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	return sum
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return dateOnly(t).AddDate(0, 0, 1)
}
