package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHierarchy indicates a parent/level/code/nature mismatch in the chart.
	ErrInvalidHierarchy = errors.New("accounting: invalid account hierarchy")
	// ErrAccountInUse indicates an account with balance or active children.
	ErrAccountInUse = errors.New("accounting: account in use")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrAccountInactive indicates a posting to a deactivated account.
	ErrAccountInactive = errors.New("accounting: account inactive")
	// ErrNoActiveMapping indicates no active account mapping row exists.
	ErrNoActiveMapping = errors.New("accounting: no active account mapping")
	// ErrUnmappedCategory indicates the active mapping has no account for a category.
	ErrUnmappedCategory = errors.New("accounting: category not mapped")
	// ErrInvalidMapping indicates a mapped account violates the category rules.
	ErrInvalidMapping = errors.New("accounting: invalid account mapping")
	// ErrUnbalancedEntry indicates sum(debit) != sum(credit).
	ErrUnbalancedEntry = errors.New("accounting: journal lines must balance")
	// ErrInvalidLine indicates a malformed journal line.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrPostingToGroupAccount indicates a line targets a non-leaf account.
	ErrPostingToGroupAccount = errors.New("accounting: cannot post to group account")
	// ErrDuplicatePosting indicates the document already has a posted entry.
	// Callers observe it as an idempotent result, never as a failure.
	ErrDuplicatePosting = errors.New("accounting: document already posted")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrOverAllocation indicates the amount exceeds invoice outstanding or voucher unallocated.
	ErrOverAllocation = errors.New("accounting: allocation exceeds available amount")
	// ErrInvoiceNotOutstanding indicates the invoice is already fully settled.
	ErrInvoiceNotOutstanding = errors.New("accounting: invoice has no outstanding amount")
	// ErrPostingFailed matches every PostingFailedError.
	ErrPostingFailed = errors.New("accounting: posting failed")
)

// PostingFailedError reports an infrastructure failure that survived the
// transaction retry. Nothing was written.
type PostingFailedError struct {
	Op  string
	Err error
}

func (e *PostingFailedError) Error() string {
	return fmt.Sprintf("accounting: %s failed: %v", e.Op, e.Err)
}

func (e *PostingFailedError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPostingFailed) match any PostingFailedError.
func (e *PostingFailedError) Is(target error) bool {
	return target == ErrPostingFailed
}

// IsDomain reports whether err belongs to the accounting taxonomy.
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var domainErrors = []error{
	ErrInvalidHierarchy, ErrAccountInUse, ErrAccountNotFound, ErrAccountInactive,
	ErrNoActiveMapping, ErrUnmappedCategory, ErrInvalidMapping,
	ErrUnbalancedEntry, ErrInvalidLine, ErrPostingToGroupAccount, ErrDuplicatePosting,
	ErrJournalNotFound, ErrInvalidStatus, ErrOverAllocation, ErrInvoiceNotOutstanding,
}

// WrapInfra wraps non-domain errors into a PostingFailedError and passes
// domain errors through unchanged.
func WrapInfra(op string, err error) error {
	if err == nil || IsDomain(err) || errors.Is(err, ErrPostingFailed) {
		return err
	}
	return &PostingFailedError{Op: op, Err: err}
}
