package integration

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// LedgerPostError indicates the business document was recorded but its journal
// posting failed.
type LedgerPostError struct {
	Err       error
	Retryable bool
	Message   string
}

func (e *LedgerPostError) Error() string {
	return e.Message
}

func (e *LedgerPostError) Unwrap() error {
	return e.Err
}

func wrapLedgerPostError(document string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, shared.ErrNoActiveMapping), errors.Is(err, shared.ErrUnmappedCategory):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   fmt.Sprintf("Account mapping incomplete; %s recorded but journal posting pending (%s)", document, err.Error()),
		}
	case errors.Is(err, shared.ErrPostingFailed):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   fmt.Sprintf("Ledger unavailable; %s recorded but journal posting pending", document),
		}
	default:
		return &LedgerPostError{
			Err:       err,
			Retryable: false,
			Message:   fmt.Sprintf("Failed to post %s to ledger (%s)", document, err.Error()),
		}
	}
}
