package assets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and transitions fixed assets.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (FixedAsset, error)
	// ListInService returns active assets plus those disposed on or after
	// periodStart, which still owe a charge for the disposal month.
	ListInService(ctx context.Context, periodStart time.Time) ([]FixedAsset, error)
	Dispose(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const assetColumns = `id, asset_number, name, purchase_date, purchase_cost, salvage_value, useful_life,
	depreciation_method, category_account_id, depreciation_expense_account_id,
	accumulated_depreciation_account_id, status, disposed_at`

func scanAsset(row pgx.Row) (FixedAsset, error) {
	var a FixedAsset
	err := row.Scan(&a.ID, &a.AssetNumber, &a.Name, &a.PurchaseDate, &a.PurchaseCost, &a.SalvageValue,
		&a.UsefulLife, &a.DepreciationMethod, &a.CategoryAccountID, &a.DepreciationExpenseAccountID,
		&a.AccumulatedDepreciationAccountID, &a.Status, &a.DisposedAt)
	return a, err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (FixedAsset, error) {
	a, err := scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return FixedAsset{}, ErrAssetNotFound
	}
	return a, err
}

const inServiceSQL = `SELECT ` + assetColumns + ` FROM fixed_assets
WHERE status = 'active' OR (status = 'disposed' AND disposed_at >= $1::date)
ORDER BY asset_number`

func (r *repository) ListInService(ctx context.Context, periodStart time.Time) ([]FixedAsset, error) {
	rows, err := r.pool.Query(ctx, inServiceSQL, periodStart.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FixedAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Dispose(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE fixed_assets SET status = 'disposed', disposed_at = $2 WHERE id = $1 AND status = 'active'`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var status Status
	err = r.pool.QueryRow(ctx, `SELECT status FROM fixed_assets WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAssetNotFound
	}
	if err != nil {
		return err
	}
	return ErrAssetDisposed
}
