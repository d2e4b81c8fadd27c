package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	"github.com/odyssey-erp/freightledger/internal/platform/db"
)

// Repository encapsulates chart of accounts persistence.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]Account, error)
	List(ctx context.Context) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetByCodeForUpdate(ctx context.Context, code string) (Account, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (Account, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, account Account) (Account, error)
	CountActiveChildren(ctx context.Context, id uuid.UUID) (int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
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

const accountColumns = `id, code, name, type, nature, level, is_group, parent_id, balance, currency, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Nature, &a.Level, &a.IsGroup, &a.ParentID, &a.Balance, &a.Currency, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func listAccounts(ctx context.Context, q queryer, sql string, args ...any) ([]Account, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]Account, error) {
	return listAccounts(ctx, r.pool, `SELECT `+accountColumns+` FROM accounts WHERE parent_id=$1 ORDER BY code`, parentID)
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	return listAccounts(ctx, r.pool, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetByCodeForUpdate(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1 FOR UPDATE`, code))
}

func (r *txRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE code=$1)`, code).Scan(&exists)
	return exists, err
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (id, code, name, type, nature, level, is_group, parent_id, currency, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE) RETURNING balance, is_active, created_at, updated_at`,
		a.ID, a.Code, a.Name, a.Type, a.Nature, a.Level, a.IsGroup, a.ParentID, a.Currency).
		Scan(&a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Account{}, fmt.Errorf("%w: code %s already exists", shared.ErrInvalidHierarchy, a.Code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) CountActiveChildren(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1 AND is_active`, id).Scan(&n)
	return n, err
}

func (r *txRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}
