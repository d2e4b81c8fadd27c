package mappings

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
)

// Category names a business event leg that resolves to one GL account.
type Category string

const (
	CategorySalesRevenue            Category = "sales_revenue"
	CategoryAccountsReceivable      Category = "accounts_receivable"
	CategorySalesTax                Category = "sales_tax"
	CategoryDiscount                Category = "discount"
	CategoryShippingRevenue         Category = "shipping_revenue"
	CategoryCustomsClearance        Category = "customs_clearance"
	CategoryStorage                 Category = "storage"
	CategoryInsurance               Category = "insurance"
	CategoryHandlingFee             Category = "handling_fee"
	CategoryCash                    Category = "cash"
	CategoryAccountsPayable         Category = "accounts_payable"
	CategoryPurchaseExpense         Category = "purchase_expense"
	CategoryPurchaseTax             Category = "purchase_tax"
	CategoryPurchaseDiscount        Category = "purchase_discount"
	CategoryDepreciationExpense     Category = "depreciation_expense"
	CategoryAccumulatedDepreciation Category = "accumulated_depreciation"
)

type rule struct {
	Type   accounts.Type
	Nature accounts.Nature
}

var (
	revenueRule   = rule{accounts.TypeRevenue, accounts.NatureCredit}
	assetRule     = rule{accounts.TypeAsset, accounts.NatureDebit}
	liabilityRule = rule{accounts.TypeLiability, accounts.NatureCredit}
	expenseRule   = rule{accounts.TypeExpense, accounts.NatureDebit}
)

// categoryOrder fixes the column order used by storage.
var categoryOrder = []Category{
	CategorySalesRevenue,
	CategoryAccountsReceivable,
	CategorySalesTax,
	CategoryDiscount,
	CategoryShippingRevenue,
	CategoryCustomsClearance,
	CategoryStorage,
	CategoryInsurance,
	CategoryHandlingFee,
	CategoryCash,
	CategoryAccountsPayable,
	CategoryPurchaseExpense,
	CategoryPurchaseTax,
	CategoryPurchaseDiscount,
	CategoryDepreciationExpense,
	CategoryAccumulatedDepreciation,
}

var categoryRules = map[Category]rule{
	CategorySalesRevenue:            revenueRule,
	CategoryShippingRevenue:         revenueRule,
	CategoryCustomsClearance:        revenueRule,
	CategoryStorage:                 revenueRule,
	CategoryInsurance:               revenueRule,
	CategoryHandlingFee:             revenueRule,
	CategoryPurchaseDiscount:        revenueRule,
	CategoryAccountsReceivable:      assetRule,
	CategoryCash:                    assetRule,
	CategoryPurchaseTax:             assetRule,
	CategoryAccumulatedDepreciation: assetRule,
	CategorySalesTax:                liabilityRule,
	CategoryAccountsPayable:         liabilityRule,
	CategoryDiscount:                expenseRule,
	CategoryPurchaseExpense:         expenseRule,
	CategoryDepreciationExpense:     expenseRule,
}

// Categories returns every known category in storage order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryRules[c]
	return ok
}

func (c Category) column() string {
	return string(c) + "_account_id"
}

// Mapping is one row of account_mappings.
type Mapping struct {
	ID        uuid.UUID              `json:"id"`
	IsActive  bool                   `json:"is_active"`
	Accounts  map[Category]uuid.UUID `json:"accounts"`
	CreatedBy uuid.UUID              `json:"created_by"`
	CreatedAt time.Time              `json:"created_at"`
}
