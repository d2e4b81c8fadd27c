package shared

import (
	"fmt"
	"time"
)

// DepreciationLockKey builds the redis key guarding a monthly depreciation run.
func DepreciationLockKey(period time.Time) string {
	return fmt.Sprintf("ledger:depreciation:%s:lock", period.Format("2006-01"))
}

// ReconcileLockKey builds the redis key guarding a reconciliation run.
func ReconcileLockKey() string {
	return "ledger:reconcile:lock"
}
