package assets

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle of a fixed asset.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisposed Status = "disposed"
)

// MethodStraightLine is the only supported depreciation method.
const MethodStraightLine = "straight_line"

var (
	// ErrAssetNotFound indicates a missing asset.
	ErrAssetNotFound = errors.New("assets: asset not found")
	// ErrAssetDisposed indicates the asset was already disposed.
	ErrAssetDisposed = errors.New("assets: asset already disposed")
)

// FixedAsset is a depreciable asset.
type FixedAsset struct {
	ID                               uuid.UUID       `json:"id"`
	AssetNumber                      string          `json:"asset_number"`
	Name                             string          `json:"name"`
	PurchaseDate                     time.Time       `json:"purchase_date"`
	PurchaseCost                     decimal.Decimal `json:"purchase_cost"`
	SalvageValue                     decimal.Decimal `json:"salvage_value"`
	UsefulLife                       int             `json:"useful_life"`
	DepreciationMethod               string          `json:"depreciation_method"`
	CategoryAccountID                *uuid.UUID      `json:"category_account_id,omitempty"`
	DepreciationExpenseAccountID     *uuid.UUID      `json:"depreciation_expense_account_id,omitempty"`
	AccumulatedDepreciationAccountID *uuid.UUID      `json:"accumulated_depreciation_account_id,omitempty"`
	Status                           Status          `json:"status"`
	DisposedAt                       *time.Time      `json:"disposed_at,omitempty"`
}

// DepreciableBase is cost less salvage.
func (a FixedAsset) DepreciableBase() decimal.Decimal {
	return a.PurchaseCost.Sub(a.SalvageValue)
}

// MonthlyAmount is the straight-line charge per month, rounded to cents.
func (a FixedAsset) MonthlyAmount() decimal.Decimal {
	if a.UsefulLife <= 0 {
		return decimal.Zero
	}
	monthly := a.DepreciableBase().Div(decimal.NewFromInt(int64(a.UsefulLife) * 12)).Round(2)
	if monthly.IsNegative() {
		return decimal.Zero
	}
	return monthly
}

// ChargeFor returns the depreciation for the month containing period. The
// month of purchase is the first charged month and the last month of the
// useful life absorbs rounding so the total equals the depreciable base.
func (a FixedAsset) ChargeFor(period time.Time) decimal.Decimal {
	monthly := a.MonthlyAmount()
	if !monthly.IsPositive() {
		return decimal.Zero
	}
	index := monthIndex(period) - monthIndex(a.PurchaseDate)
	life := a.UsefulLife * 12
	if index < 0 || index >= life {
		return decimal.Zero
	}
	remaining := a.DepreciableBase().Sub(monthly.Mul(decimal.NewFromInt(int64(index))))
	if index == life-1 || remaining.LessThan(monthly) {
		if remaining.IsNegative() {
			return decimal.Zero
		}
		return remaining
	}
	return monthly
}

// InServiceDuring reports whether the asset was held at some point in the
// month containing period. The disposal month is the last month charged.
func (a FixedAsset) InServiceDuring(period time.Time) bool {
	if a.Status != StatusDisposed {
		return true
	}
	if a.DisposedAt == nil {
		return false
	}
	return monthIndex(period) <= monthIndex(*a.DisposedAt)
}

// VoucherNo is the idempotency key of an asset-month posting.
func VoucherNo(period time.Time, assetNumber string) string {
	return fmt.Sprintf("DEP-%s-%s", period.Format("2006-01"), assetNumber)
}

// DocumentID derives a stable document id from the voucher number.
func DocumentID(voucherNo string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(voucherNo))
}

// SkipReason explains why an asset produced no entry.
type SkipReason string

const (
	SkipAlreadyPosted    SkipReason = "already_posted"
	SkipMissingAccounts  SkipReason = "missing_accounts"
	SkipNotInService     SkipReason = "not_in_service"
	SkipDisposed         SkipReason = "disposed"
	SkipFullyDepreciated SkipReason = "fully_depreciated"
	SkipNonPositive      SkipReason = "non_positive_amount"
)

// AssetRef names an asset in run results.
type AssetRef struct {
	ID          uuid.UUID `json:"id"`
	AssetNumber string    `json:"asset_number"`
}

// Skipped records an asset left alone by a run.
type Skipped struct {
	AssetRef
	Reason SkipReason `json:"reason"`
}

// Failed records an asset whose posting failed.
type Failed struct {
	AssetRef
	Error string `json:"error"`
}

// RunResult summarises one depreciation run.
type RunResult struct {
	Period         string    `json:"period"`
	CreatedEntries int       `json:"created_entries"`
	Skipped        []Skipped `json:"skipped"`
	Failed         []Failed  `json:"failed"`
	Contended      bool      `json:"contended,omitempty"`
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, -1)
}
