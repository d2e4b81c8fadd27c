package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	"github.com/odyssey-erp/freightledger/internal/platform/db"
)

// Repository persists account mapping rows.
type Repository interface {
	GetActive(ctx context.Context) (Mapping, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetActiveForUpdate(ctx context.Context) (Mapping, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Insert(ctx context.Context, mapping Mapping) (Mapping, error)
	SetCategory(ctx context.Context, id uuid.UUID, category Category, accountID uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func selectActive(forUpdate bool) string {
	cols := make([]string, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		cols = append(cols, c.column())
	}
	sql := `SELECT id, is_active, COALESCE(created_by, '00000000-0000-0000-0000-000000000000'), created_at, ` +
		strings.Join(cols, ", ") + ` FROM account_mappings WHERE is_active`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return sql
}

func scanMapping(row pgx.Row) (Mapping, error) {
	var m Mapping
	refs := make([]*uuid.UUID, len(categoryOrder))
	dest := []any{&m.ID, &m.IsActive, &m.CreatedBy, &m.CreatedAt}
	for i := range refs {
		dest = append(dest, &refs[i])
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mapping{}, shared.ErrNoActiveMapping
		}
		return Mapping{}, err
	}
	m.Accounts = make(map[Category]uuid.UUID, len(refs))
	for i, ref := range refs {
		if ref != nil {
			m.Accounts[categoryOrder[i]] = *ref
		}
	}
	return m, nil
}

func (r *repository) GetActive(ctx context.Context) (Mapping, error) {
	return scanMapping(r.pool.QueryRow(ctx, selectActive(false)))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetActiveForUpdate(ctx context.Context) (Mapping, error) {
	return scanMapping(r.tx.QueryRow(ctx, selectActive(true)))
}

func (r *txRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `UPDATE account_mappings SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *txRepository) Insert(ctx context.Context, m Mapping) (Mapping, error) {
	cols := []string{"id", "is_active", "created_by"}
	args := []any{m.ID, true, m.CreatedBy}
	for _, c := range categoryOrder {
		if id, ok := m.Accounts[c]; ok {
			cols = append(cols, c.column())
			args = append(args, id)
		}
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := `INSERT INTO account_mappings (` + strings.Join(cols, ", ") + `) VALUES (` +
		strings.Join(placeholders, ", ") + `) RETURNING created_at`
	if err := r.tx.QueryRow(ctx, sql, args...).Scan(&m.CreatedAt); err != nil {
		if db.IsUniqueViolation(err, "uq_account_mappings_active") {
			return Mapping{}, fmt.Errorf("%w: another mapping is already active", shared.ErrInvalidMapping)
		}
		return Mapping{}, err
	}
	m.IsActive = true
	return m, nil
}

func (r *txRepository) SetCategory(ctx context.Context, id uuid.UUID, category Category, accountID uuid.UUID) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", shared.ErrInvalidMapping, category)
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE account_mappings SET `+category.column()+`=$2, updated_at=NOW() WHERE id=$1`, id, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNoActiveMapping
	}
	return nil
}
