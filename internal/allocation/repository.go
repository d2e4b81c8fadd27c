package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/platform/db"
)

// Repository encapsulates allocation persistence for one book.
type Repository interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetVoucher(ctx context.Context, id uuid.UUID) (Voucher, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error)
	CacheDrift(ctx context.Context) ([]CacheDrift, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within an allocation transaction.
type TxRepository interface {
	LockInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	LockVoucher(ctx context.Context, id uuid.UUID) (Voucher, error)
	ActiveTotalForInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	ActiveTotalForVoucher(ctx context.Context, voucherID uuid.UUID) (decimal.Decimal, error)
	InsertAllocation(ctx context.Context, a Allocation) error
	GetAllocationForUpdate(ctx context.Context, id uuid.UUID) (Allocation, error)
	MarkReversed(ctx context.Context, id uuid.UUID, at time.Time) error
	SetInvoiceOutstanding(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	SetVoucherUnallocated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
	spec BookSpec
}

// NewRepository returns the PostgreSQL repository for spec.
func NewRepository(pool *pgxpool.Pool, spec BookSpec) Repository {
	return &repository{pool: pool, spec: spec}
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s BookSpec) invoiceSQL(forUpdate bool) string {
	sql := fmt.Sprintf(`SELECT id, number, %s, issue_date, due_date, total, outstanding_amount, status FROM %s WHERE id=$1`,
		s.PartyColumn, s.InvoiceTable)
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return sql
}

func (s BookSpec) voucherSQL(forUpdate bool) string {
	sql := fmt.Sprintf(`SELECT id, number, %s, date, amount, unallocated_amount, status FROM %s WHERE id=$1`,
		s.PartyColumn, s.VoucherTable)
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return sql
}

func (s BookSpec) allocationColumns() string {
	return fmt.Sprintf(`id, %s, invoice_id, allocated_amount, status, created_by, created_at, reversed_at`, s.VoucherColumn)
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.PartyID, &inv.IssueDate, &inv.DueDate, &inv.Total, &inv.Outstanding, &inv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Number, &v.PartyID, &v.Date, &v.Amount, &v.Unallocated, &v.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		return Voucher{}, err
	}
	return v, nil
}

func scanAllocation(row pgx.Row) (Allocation, error) {
	var a Allocation
	err := row.Scan(&a.ID, &a.VoucherID, &a.InvoiceID, &a.Amount, &a.Status, &a.CreatedBy, &a.CreatedAt, &a.ReversedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Allocation{}, ErrAllocationNotFound
		}
		return Allocation{}, err
	}
	return a, nil
}

func (r *repository) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, r.spec.invoiceSQL(false), id))
}

func (r *repository) GetVoucher(ctx context.Context, id uuid.UUID) (Voucher, error) {
	return scanVoucher(r.pool.QueryRow(ctx, r.spec.voucherSQL(false), id))
}

func (r *repository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE invoice_id=$1 ORDER BY created_at`,
		r.spec.allocationColumns(), r.spec.AllocationTable), invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, spec: r.spec})
	})
}

type txRepository struct {
	tx   pgx.Tx
	spec BookSpec
}

func (r *txRepository) LockInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, r.spec.invoiceSQL(true), id))
}

func (s BookSpec) driftSQL() string {
	return fmt.Sprintf(`SELECT 'invoice', i.id, i.number, i.outstanding_amount,
	i.total - COALESCE(SUM(a.allocated_amount) FILTER (WHERE a.status = 'active'), 0) AS expected
FROM %[1]s i LEFT JOIN %[3]s a ON a.invoice_id = i.id
GROUP BY i.id, i.number, i.outstanding_amount, i.total
HAVING i.outstanding_amount <> i.total - COALESCE(SUM(a.allocated_amount) FILTER (WHERE a.status = 'active'), 0)
UNION ALL
SELECT 'voucher', v.id, v.number, v.unallocated_amount,
	v.amount - COALESCE(SUM(a.allocated_amount) FILTER (WHERE a.status = 'active'), 0) AS expected
FROM %[2]s v LEFT JOIN %[3]s a ON a.%[4]s = v.id
GROUP BY v.id, v.number, v.unallocated_amount, v.amount
HAVING v.unallocated_amount <> v.amount - COALESCE(SUM(a.allocated_amount) FILTER (WHERE a.status = 'active'), 0)`,
		s.InvoiceTable, s.VoucherTable, s.AllocationTable, s.VoucherColumn)
}

func (r *repository) CacheDrift(ctx context.Context) ([]CacheDrift, error) {
	rows, err := r.pool.Query(ctx, r.spec.driftSQL())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CacheDrift
	for rows.Next() {
		var d CacheDrift
		if err := rows.Scan(&d.Kind, &d.ID, &d.Number, &d.Stored, &d.Expected); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *txRepository) LockVoucher(ctx context.Context, id uuid.UUID) (Voucher, error) {
	return scanVoucher(r.tx.QueryRow(ctx, r.spec.voucherSQL(true), id))
}

func sumActive(ctx context.Context, q queryer, sql string, id uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.QueryRow(ctx, sql, id).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *txRepository) ActiveTotalForInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	return sumActive(ctx, r.tx, fmt.Sprintf(`SELECT COALESCE(SUM(allocated_amount), 0) FROM %s WHERE invoice_id=$1 AND status='active'`,
		r.spec.AllocationTable), invoiceID)
}

func (r *txRepository) ActiveTotalForVoucher(ctx context.Context, voucherID uuid.UUID) (decimal.Decimal, error) {
	return sumActive(ctx, r.tx, fmt.Sprintf(`SELECT COALESCE(SUM(allocated_amount), 0) FROM %s WHERE %s=$1 AND status='active'`,
		r.spec.AllocationTable, r.spec.VoucherColumn), voucherID)
}

func (r *txRepository) InsertAllocation(ctx context.Context, a Allocation) error {
	_, err := r.tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, %s, invoice_id, allocated_amount, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.spec.AllocationTable, r.spec.VoucherColumn),
		a.ID, a.VoucherID, a.InvoiceID, a.Amount, a.Status, a.CreatedBy, a.CreatedAt)
	return err
}

func (r *txRepository) GetAllocationForUpdate(ctx context.Context, id uuid.UUID) (Allocation, error) {
	return scanAllocation(r.tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1 FOR UPDATE`,
		r.spec.allocationColumns(), r.spec.AllocationTable), id))
}

func (r *txRepository) MarkReversed(ctx context.Context, id uuid.UUID, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET status='reversed', reversed_at=$2 WHERE id=$1 AND status='active'`,
		r.spec.AllocationTable), id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAllocationNotFound
	}
	return nil
}

func (r *txRepository) SetInvoiceOutstanding(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET outstanding_amount=$2 WHERE id=$1`, r.spec.InvoiceTable), id, amount)
	return err
}

func (r *txRepository) SetVoucherUnallocated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET unallocated_amount=$2 WHERE id=$1`, r.spec.VoucherTable), id, amount)
	return err
}
