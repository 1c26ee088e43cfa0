package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnesstree/marketplace-api/internal/domain/ads"
)

const (
	getAdSQL = `SELECT id, merchant_id, title, status, bonus_rate, start_date, end_date,
			impressions, clicks, conversions, click_rate, conversion_rate
		FROM ads WHERE id = $1`

	insertEventSQL = `INSERT INTO ad_events (id, ad_id, event_type, placement, destination, user_id, tracking_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	bumpImpressionsSQL = `UPDATE ads SET impressions = impressions + 1,
			click_rate = CASE WHEN impressions + 1 > 0 THEN round(clicks * 100.0 / (impressions + 1), 2) ELSE 0 END
		WHERE id = $1`

	bumpClicksSQL = `UPDATE ads SET clicks = clicks + 1,
			click_rate = CASE WHEN impressions > 0 THEN round((clicks + 1) * 100.0 / impressions, 2) ELSE 0 END
		WHERE id = $1`

	findActiveSelectionSQL = `SELECT s.id, s.ad_id, s.merchant_id, s.influencer_id, s.tracking_code, s.status,
			i.tier_rate, a.bonus_rate, s.conversions, s.earned
		FROM ad_selections s
		JOIN influencers i ON i.id = s.influencer_id
		JOIN ads a ON a.id = s.ad_id
		WHERE s.tracking_code = $1 AND s.status = 'active'`

	listActiveCodesSQL = `SELECT tracking_code FROM ad_selections WHERE status = 'active'`

	insertConversionSQL = `INSERT INTO ad_conversions (
			id, order_id, selection_id, ad_id, merchant_id, influencer_id,
			platform_profit, tier_rate, bonus_rate,
			base_commission, bonus_commission, total_commission,
			merchant_payout_delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (order_id) DO NOTHING`

	bumpSelectionSQL = `UPDATE ad_selections
		SET conversions = conversions + 1, earned = earned + $2
		WHERE id = $1`

	bumpAdConversionsSQL = `UPDATE ads SET conversions = conversions + 1,
			conversion_rate = CASE WHEN clicks > 0 THEN round((conversions + 1) * 100.0 / clicks, 2) ELSE 0 END
		WHERE id = $1`

	bumpInfluencerSQL = `UPDATE influencers
		SET total_earnings = total_earnings + $2, pending_earnings = pending_earnings + $2
		WHERE id = $1`

	bumpMerchantBonusSQL = `UPDATE merchants SET ad_bonus_paid = ad_bonus_paid + $2 WHERE id = $1`

	activateDueAdsSQL = `UPDATE ads SET status = 'active'
		WHERE status = 'scheduled' AND start_date IS NOT NULL AND start_date <= $1`

	endExpiredAdsSQL = `UPDATE ads SET status = 'ended'
		WHERE status IN ('active', 'scheduled') AND end_date IS NOT NULL AND end_date < $1`

	aggregateDailySQL = `INSERT INTO ad_daily_analytics (ad_id, day, impressions, clicks, conversions)
		SELECT a.id, $1::date,
			count(*) FILTER (WHERE e.event_type = 'impression'),
			count(*) FILTER (WHERE e.event_type = 'click'),
			(SELECT count(*) FROM ad_conversions c
				WHERE c.ad_id = a.id AND c.created_at >= $1::date AND c.created_at < $1::date + 1)
		FROM ads a
		JOIN ad_events e ON e.ad_id = a.id
			AND e.created_at >= $1::date AND e.created_at < $1::date + 1
		WHERE a.status = 'active'
		GROUP BY a.id
		ON CONFLICT (ad_id, day) DO UPDATE
		SET impressions = EXCLUDED.impressions,
			clicks = EXCLUDED.clicks,
			conversions = EXCLUDED.conversions`
)

var _ ads.Repository = (*AdsRepository)(nil)

// AdsRepository implements ads.Repository backed by PostgreSQL.
type AdsRepository struct {
	pool *pgxpool.Pool
}

// NewAdsRepository returns an AdsRepository that uses the given pool.
func NewAdsRepository(pool *pgxpool.Pool) *AdsRepository {
	return &AdsRepository{pool: pool}
}

// GetAd returns a single ad by its identifier.
func (r *AdsRepository) GetAd(ctx context.Context, id string) (*ads.Ad, error) {
	rows, err := r.pool.Query(ctx, getAdSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting ad %q: %w", id, err)
	}

	ad, err := pgx.CollectExactlyOneRow(rows, scanAd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ads.ErrAdNotFound
		}
		return nil, fmt.Errorf("getting ad %q: %w", id, err)
	}
	return &ad, nil
}

// RecordImpression inserts the event and bumps the ad's impression
// counter in one transaction.
func (r *AdsRepository) RecordImpression(ctx context.Context, ev ads.Event) error {
	return r.recordEvent(ctx, ev, bumpImpressionsSQL)
}

// RecordClick inserts the event, bumps the click counter, and
// recomputes the click-through rate in one transaction.
func (r *AdsRepository) RecordClick(ctx context.Context, ev ads.Event) error {
	return r.recordEvent(ctx, ev, bumpClicksSQL)
}

func (r *AdsRepository) recordEvent(ctx context.Context, ev ads.Event, bumpSQL string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertEventSQL,
			ev.ID, ev.AdID, ev.EventType, ev.Placement, ev.Destination,
			ev.UserID, ev.TrackingCode, ev.CreatedAt,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, bumpSQL, ev.AdID)
		return err
	})
	if err != nil {
		return fmt.Errorf("recording %s for ad %q: %w", ev.EventType, ev.AdID, err)
	}
	return nil
}

// FindActiveSelection returns the active selection for the tracking
// code, joined with the influencer tier rate and the ad bonus rate.
// No matching selection yields (nil, nil).
func (r *AdsRepository) FindActiveSelection(ctx context.Context, trackingCode string) (*ads.Selection, error) {
	rows, err := r.pool.Query(ctx, findActiveSelectionSQL, trackingCode)
	if err != nil {
		return nil, fmt.Errorf("finding selection for code %q: %w", trackingCode, err)
	}

	sel, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (ads.Selection, error) {
		var s ads.Selection
		err := row.Scan(&s.ID, &s.AdID, &s.MerchantID, &s.InfluencerID, &s.TrackingCode, &s.Status,
			&s.TierRate, &s.BonusRate, &s.Conversions, &s.Earned)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding selection for code %q: %w", trackingCode, err)
	}
	return &sel, nil
}

// ListActiveTrackingCodes returns every tracking code with an active
// selection.
func (r *AdsRepository) ListActiveTrackingCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listActiveCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active tracking codes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
}

// ApplyConversion persists the conversion record and every dependent
// counter update in one transaction. The unique order_id constraint
// makes replays a no-op: when the insert conflicts, none of the counter
// updates run either.
func (r *AdsRepository) ApplyConversion(ctx context.Context, c ads.Conversion) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertConversionSQL,
			c.ID, c.OrderID, c.SelectionID, c.AdID, c.MerchantID, c.InfluencerID,
			c.PlatformProfit, c.TierRate, c.BonusRate,
			c.BaseCommission, c.BonusCommission, c.TotalCommission,
			c.MerchantPayoutDelta, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert conversion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Already processed for this order.
			return nil
		}

		if _, err := tx.Exec(ctx, bumpSelectionSQL, c.SelectionID, c.TotalCommission); err != nil {
			return fmt.Errorf("bump selection: %w", err)
		}
		if _, err := tx.Exec(ctx, bumpAdConversionsSQL, c.AdID); err != nil {
			return fmt.Errorf("bump ad conversions: %w", err)
		}
		if _, err := tx.Exec(ctx, bumpInfluencerSQL, c.InfluencerID, c.TotalCommission); err != nil {
			return fmt.Errorf("bump influencer earnings: %w", err)
		}
		if _, err := tx.Exec(ctx, bumpMerchantBonusSQL, c.MerchantID, c.MerchantPayoutDelta); err != nil {
			return fmt.Errorf("bump merchant ad bonus: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("applying conversion for order %q: %w", c.OrderID, err)
	}
	return nil
}

// ActivateDueAds moves scheduled ads whose start date has arrived to
// active. It returns the number of ads transitioned.
func (r *AdsRepository) ActivateDueAds(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, activateDueAdsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("activating due ads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EndExpiredAds moves active and scheduled ads past their end date to
// ended. It returns the number of ads transitioned.
func (r *AdsRepository) EndExpiredAds(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, endExpiredAdsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("ending expired ads: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AggregateDailyStats rolls up the given day's events per active ad
// into ad_daily_analytics. Re-running for the same day overwrites the
// previous rollup.
func (r *AdsRepository) AggregateDailyStats(ctx context.Context, day time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, aggregateDailySQL, day)
	if err != nil {
		return 0, fmt.Errorf("aggregating daily stats: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAd(row pgx.CollectableRow) (ads.Ad, error) {
	var a ads.Ad
	err := row.Scan(&a.ID, &a.MerchantID, &a.Title, &a.Status, &a.BonusRate,
		&a.StartDate, &a.EndDate,
		&a.Impressions, &a.Clicks, &a.Conversions, &a.ClickRate, &a.ConversionRate)
	return a, err
}
