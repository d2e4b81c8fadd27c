package aging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/allocation"
)

// Repository loads open items for a book.
type Repository interface {
	OpenItems(ctx context.Context, spec allocation.BookSpec, asOf time.Time, partyID *uuid.UUID) ([]OpenItem, error)
	// Fingerprint summarises the invoice table so reports built before an
	// invoice was added, voided or re-totalled are never served again.
	Fingerprint(ctx context.Context, spec allocation.BookSpec) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func openItemsSQL(spec allocation.BookSpec) string {
	return fmt.Sprintf(`SELECT i.id, i.%[3]s, i.due_date, i.total,
	COALESCE(SUM(a.allocated_amount) FILTER (
		WHERE a.created_at < $1 AND (a.reversed_at IS NULL OR a.reversed_at >= $1)
	), 0)
FROM %[1]s i
LEFT JOIN %[2]s a ON a.invoice_id = i.id
WHERE i.status <> 'void'
	AND i.issue_date <= $3::date
	AND ($2::uuid IS NULL OR i.%[3]s = $2)
GROUP BY i.id, i.%[3]s, i.due_date, i.total
ORDER BY i.%[3]s, i.due_date`, spec.InvoiceTable, spec.AllocationTable, spec.PartyColumn)
}

func (r *repository) OpenItems(ctx context.Context, spec allocation.BookSpec, asOf time.Time, partyID *uuid.UUID) ([]OpenItem, error) {
	rows, err := r.pool.Query(ctx, openItemsSQL(spec), endOfDay(asOf), partyID, asOf.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OpenItem
	for rows.Next() {
		var item OpenItem
		if err := rows.Scan(&item.InvoiceID, &item.PartyID, &item.DueDate, &item.Total, &item.Allocated); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func fingerprintSQL(spec allocation.BookSpec) string {
	return fmt.Sprintf(`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'void'),
	COALESCE(SUM(total) FILTER (WHERE status <> 'void'), 0)
FROM %s`, spec.InvoiceTable)
}

func (r *repository) Fingerprint(ctx context.Context, spec allocation.BookSpec) (string, error) {
	var (
		count, voided int64
		total         decimal.Decimal
	)
	if err := r.pool.QueryRow(ctx, fingerprintSQL(spec)).Scan(&count, &voided, &total); err != nil {
		return "", err
	}
	return formatFingerprint(count, voided, total), nil
}

func formatFingerprint(count, voided int64, total decimal.Decimal) string {
	return fmt.Sprintf("n%d-x%d-t%s", count, voided, total.StringFixed(2))
}
