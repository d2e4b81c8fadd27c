package app

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	"github.com/odyssey-erp/freightledger/internal/allocation"
	"github.com/odyssey-erp/freightledger/internal/assets"
	"github.com/odyssey-erp/freightledger/internal/platform/httpx"
)

func ledgerErrorRules() []httpx.ErrorRule {
	return []httpx.ErrorRule{
		{Target: shared.ErrAccountNotFound, Status: http.StatusNotFound, Title: "Account Not Found"},
		{Target: shared.ErrJournalNotFound, Status: http.StatusNotFound, Title: "Journal Entry Not Found"},
		{Target: allocation.ErrInvoiceNotFound, Status: http.StatusNotFound, Title: "Invoice Not Found"},
		{Target: allocation.ErrVoucherNotFound, Status: http.StatusNotFound, Title: "Voucher Not Found"},
		{Target: allocation.ErrAllocationNotFound, Status: http.StatusNotFound, Title: "Allocation Not Found"},
		{Target: assets.ErrAssetNotFound, Status: http.StatusNotFound, Title: "Asset Not Found"},

		{Target: shared.ErrInvalidHierarchy, Status: http.StatusUnprocessableEntity, Title: "Invalid Account Hierarchy"},
		{Target: shared.ErrAccountInUse, Status: http.StatusConflict, Title: "Account In Use"},
		{Target: shared.ErrAccountInactive, Status: http.StatusUnprocessableEntity, Title: "Account Inactive"},
		{Target: shared.ErrNoActiveMapping, Status: http.StatusUnprocessableEntity, Title: "No Active Mapping"},
		{Target: shared.ErrUnmappedCategory, Status: http.StatusUnprocessableEntity, Title: "Unmapped Category"},
		{Target: shared.ErrInvalidMapping, Status: http.StatusUnprocessableEntity, Title: "Invalid Mapping"},
		{Target: shared.ErrUnbalancedEntry, Status: http.StatusUnprocessableEntity, Title: "Unbalanced Entry"},
		{Target: shared.ErrInvalidLine, Status: http.StatusUnprocessableEntity, Title: "Invalid Journal Line"},
		{Target: shared.ErrPostingToGroupAccount, Status: http.StatusUnprocessableEntity, Title: "Group Account"},
		{Target: shared.ErrOverAllocation, Status: http.StatusUnprocessableEntity, Title: "Over Allocation"},
		{Target: shared.ErrInvoiceNotOutstanding, Status: http.StatusUnprocessableEntity, Title: "Invoice Not Outstanding"},
		{Target: allocation.ErrInvalidAmount, Status: http.StatusBadRequest, Title: "Invalid Amount"},
		{Target: allocation.ErrPartyMismatch, Status: http.StatusUnprocessableEntity, Title: "Party Mismatch"},
		{Target: allocation.ErrDocumentVoid, Status: http.StatusUnprocessableEntity, Title: "Document Void"},

		{Target: shared.ErrInvalidStatus, Status: http.StatusConflict, Title: "Invalid Status"},
		{Target: assets.ErrAssetDisposed, Status: http.StatusConflict, Title: "Asset Disposed"},
		{Target: shared.ErrPostingFailed, Status: http.StatusServiceUnavailable, Title: "Posting Failed"},
	}
}

// NewErrorMapper returns the problem mapper used by every ledger handler.
func NewErrorMapper(logger *slog.Logger) *httpx.ErrorMapper {
	return httpx.NewErrorMapper(logger, ledgerErrorRules()...)
}
