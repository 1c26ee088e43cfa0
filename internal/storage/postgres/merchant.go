package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnesstree/marketplace-api/internal/domain/merchant"
)

const getMerchantByIDSQL = `SELECT id, name, tax_rate, ad_bonus_paid
	FROM merchants WHERE id = $1`

var _ merchant.Repository = (*MerchantRepository)(nil)

// MerchantRepository implements merchant.Repository backed by PostgreSQL.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantRepository returns a MerchantRepository that uses the given pool.
func NewMerchantRepository(pool *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{pool: pool}
}

// GetByID returns a single merchant by its identifier.
func (r *MerchantRepository) GetByID(ctx context.Context, id string) (*merchant.Merchant, error) {
	rows, err := r.pool.Query(ctx, getMerchantByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting merchant %q: %w", id, err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (merchant.Merchant, error) {
		var m merchant.Merchant
		err := row.Scan(&m.ID, &m.Name, &m.TaxRate, &m.AdBonusPaid)
		return m, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, merchant.ErrNotFound
		}
		return nil, fmt.Errorf("getting merchant %q: %w", id, err)
	}
	return &m, nil
}
