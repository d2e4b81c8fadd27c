package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type enumerates chart of accounts categories.
type Type string

const (
	TypeAsset     Type = "asset"
	TypeLiability Type = "liability"
	TypeEquity    Type = "equity"
	TypeRevenue   Type = "revenue"
	TypeExpense   Type = "expense"
)

// Valid reports whether t is a known account type.
func (t Type) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

// NormalNature returns the side on which accounts of type t increase.
func (t Type) NormalNature() Nature {
	switch t {
	case TypeAsset, TypeExpense:
		return NatureDebit
	default:
		return NatureCredit
	}
}

// Nature is the normal balance side of an account.
type Nature string

const (
	NatureDebit  Nature = "debit"
	NatureCredit Nature = "credit"
)

// Signed converts a debit/credit pair into the balance movement for this nature.
func (n Nature) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	delta := debit.Sub(credit)
	if n == NatureCredit {
		return delta.Neg()
	}
	return delta
}

// Account models a chart of accounts node.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      Type            `json:"type"`
	Nature    Nature          `json:"nature"`
	Level     int             `json:"level"`
	IsGroup   bool            `json:"is_group"`
	ParentID  *uuid.UUID      `json:"parent_id,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsLeaf reports whether the account accepts postings.
func (a Account) IsLeaf() bool {
	return !a.IsGroup
}

// CreateInput carries attributes for a new account. Nature and Level are
// derived when left empty.
type CreateInput struct {
	Code     string
	Name     string
	Type     Type
	Nature   Nature
	Level    int
	IsGroup  bool
	Currency string
}

// ParentCode returns the code of the parent implied by a dotted code.
func ParentCode(code string) string {
	idx := strings.LastIndex(code, ".")
	if idx < 0 {
		return ""
	}
	return code[:idx]
}
