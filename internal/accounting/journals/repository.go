package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	"github.com/odyssey-erp/freightledger/internal/platform/db"
)

// documentConstraint is the partial unique index backing posting idempotency.
const documentConstraint = "uq_journal_entries_document"

// Repository encapsulates DB operations for journals.
type Repository interface {
	GetEntry(ctx context.Context, id uuid.UUID) (JournalEntry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
	FindPosted(ctx context.Context, docType DocumentType, docID uuid.UUID) (JournalEntry, bool, error)
	VoucherPosted(ctx context.Context, voucherNo string) (bool, error)
	BalanceDrift(ctx context.Context) ([]BalanceDrift, error)
	UnbalancedEntries(ctx context.Context) ([]uuid.UUID, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	FindPosted(ctx context.Context, docType DocumentType, docID uuid.UUID) (JournalEntry, bool, error)
	LockAccounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]AccountRef, error)
	NextEntryNumber(ctx context.Context) (string, error)
	InsertEntry(ctx context.Context, entry JournalEntry) error
	InsertLines(ctx context.Context, lines []JournalLine) error
	ApplyBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error
	RecomputeBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	GetEntryForUpdate(ctx context.Context, id uuid.UUID) (JournalEntry, error)
	MarkReversed(ctx context.Context, id, reversedBy uuid.UUID, at time.Time) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const entryColumns = `id, entry_number, date, description, reference, total_debit, total_credit, status, document_type, document_id, reversal_of, reversed_by, created_by, created_at, reversed_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.EntryNumber, &e.Date, &e.Description, &e.Reference, &e.TotalDebit, &e.TotalCredit, &e.Status,
		&e.DocumentType, &e.DocumentID, &e.ReversalOf, &e.ReversedBy, &e.CreatedBy, &e.CreatedAt, &e.ReversedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func loadLines(ctx context.Context, q queryer, entryID uuid.UUID) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_entry_id, line_no, account_id, debit, credit, description, voucher_type, voucher_no, posting_date, currency, exchange_rate
FROM journal_entry_details WHERE journal_entry_id=$1 ORDER BY line_no`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.LineNo, &l.AccountID, &l.Debit, &l.Credit, &l.Description,
			&l.VoucherType, &l.VoucherNo, &l.PostingDate, &l.Currency, &l.ExchangeRate); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func getEntry(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (JournalEntry, error) {
	sql := `SELECT ` + entryColumns + ` FROM journal_entries WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	entry, err := scanEntry(q.QueryRow(ctx, sql, id))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, q, id)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func findPosted(ctx context.Context, q queryer, docType DocumentType, docID uuid.UUID) (JournalEntry, bool, error) {
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE document_type=$1 AND document_id=$2 AND status <> 'reversed'`, docType, docID))
	if err != nil {
		if errors.Is(err, shared.ErrJournalNotFound) {
			return JournalEntry{}, false, nil
		}
		return JournalEntry{}, false, err
	}
	return entry, true, nil
}

func (r *repository) GetEntry(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	return getEntry(ctx, r.pool, id, false)
}

func (r *repository) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.From != nil {
		add("date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("date <= $%d", *filter.To)
	}
	if filter.DocumentType != "" {
		add("document_type = $%d", filter.DocumentType)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	sql := `SELECT ` + entryColumns + ` FROM journal_entries`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY date DESC, entry_number DESC LIMIT $%d`, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) FindPosted(ctx context.Context, docType DocumentType, docID uuid.UUID) (JournalEntry, bool, error) {
	return findPosted(ctx, r.pool, docType, docID)
}

func (r *repository) VoucherPosted(ctx context.Context, voucherNo string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM journal_entry_details d JOIN journal_entries e ON e.id = d.journal_entry_id
	WHERE d.voucher_no=$1 AND e.status <> 'reversed' AND e.document_type <> 'reversal'
)`, voucherNo).Scan(&exists)
	return exists, err
}

func (r *repository) BalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.balance,
	COALESCE(SUM(CASE WHEN a.nature = 'debit' THEN d.debit - d.credit ELSE d.credit - d.debit END), 0) AS expected
FROM accounts a
LEFT JOIN journal_entry_details d ON d.account_id = a.id
GROUP BY a.id, a.code, a.balance
HAVING a.balance <> COALESCE(SUM(CASE WHEN a.nature = 'debit' THEN d.debit - d.credit ELSE d.credit - d.debit END), 0)
ORDER BY a.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Code, &d.Stored, &d.Expected); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func (r *repository) UnbalancedEntries(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id
FROM journal_entries e
JOIN journal_entry_details d ON d.journal_entry_id = e.id
WHERE e.status <> 'draft'
GROUP BY e.id, e.total_debit, e.total_credit
HAVING SUM(d.debit) <> SUM(d.credit) OR SUM(d.debit) <> e.total_debit OR SUM(d.credit) <> e.total_credit
ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) FindPosted(ctx context.Context, docType DocumentType, docID uuid.UUID) (JournalEntry, bool, error) {
	return findPosted(ctx, r.tx, docType, docID)
}

func (r *txRepository) LockAccounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]AccountRef, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, nature, is_group, is_active, currency
FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := make(map[uuid.UUID]AccountRef, len(ids))
	for rows.Next() {
		var ref AccountRef
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.Nature, &ref.IsGroup, &ref.IsActive, &ref.Currency); err != nil {
			return nil, err
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

func (r *txRepository) NextEntryNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.tx.QueryRow(ctx, `SELECT nextval('journal_entry_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return formatEntryNumber(seq), nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_entries (id, entry_number, date, description, reference, total_debit, total_credit, status, document_type, document_id, reversal_of, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.EntryNumber, e.Date, e.Description, e.Reference, e.TotalDebit, e.TotalCredit, e.Status,
		e.DocumentType, e.DocumentID, e.ReversalOf, e.CreatedBy, e.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, documentConstraint) {
			return shared.ErrDuplicatePosting
		}
		return err
	}
	return nil
}

func (r *txRepository) InsertLines(ctx context.Context, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO journal_entry_details (id, journal_entry_id, line_no, account_id, debit, credit, description, voucher_type, voucher_no, posting_date, currency, exchange_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			l.ID, l.JournalEntryID, l.LineNo, l.AccountID, l.Debit, l.Credit, l.Description, l.VoucherType, l.VoucherNo, l.PostingDate, l.Currency, l.ExchangeRate)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) ApplyBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

// RecomputeBalance locks the account and rewrites its balance from GL lines.
func (r *txRepository) RecomputeBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var nature accounts.Nature
	if err := r.tx.QueryRow(ctx, `SELECT nature FROM accounts WHERE id=$1 FOR UPDATE`, accountID).Scan(&nature); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	var debit, credit decimal.Decimal
	if err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0)
FROM journal_entry_details WHERE account_id=$1`, accountID).Scan(&debit, &credit); err != nil {
		return decimal.Zero, err
	}
	balance := nature.Signed(debit, credit)
	if _, err := r.tx.Exec(ctx, `UPDATE accounts SET balance=$2, updated_at=NOW() WHERE id=$1`, accountID, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	return getEntry(ctx, r.tx, id, true)
}

func (r *txRepository) MarkReversed(ctx context.Context, id, reversedBy uuid.UUID, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='reversed', reversed_by=$2, reversed_at=$3 WHERE id=$1 AND status='posted'`, id, reversedBy, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func formatEntryNumber(seq int64) string {
	return fmt.Sprintf("JE-%06d", seq)
}
