package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnesstree/marketplace-api/internal/domain/referral"
)

const referralExistsSQL = `SELECT EXISTS (SELECT 1 FROM referral_codes WHERE code = $1)`

var _ referral.Repository = (*ReferralRepository)(nil)

// ReferralRepository implements referral.Repository backed by PostgreSQL.
type ReferralRepository struct {
	pool *pgxpool.Pool
}

// NewReferralRepository returns a ReferralRepository that uses the given pool.
func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// Exists reports whether the code is in the ingested referral set.
func (r *ReferralRepository) Exists(ctx context.Context, code string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, referralExistsSQL, code).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking referral code: %w", err)
	}
	return ok, nil
}
