package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnesstree/marketplace-api/internal/domain/ads"
)

// maxOutboxAttempts is the retry budget before an event is dead-lettered.
const maxOutboxAttempts = 5

const (
	fetchPendingOutboxSQL = `SELECT x.order_id, x.tracking_code, x.attempts, o.total, o.platform_commission
		FROM conversion_outbox x
		JOIN orders o ON o.id = x.order_id
		WHERE x.status = 'pending'
		ORDER BY x.created_at
		LIMIT $1`

	markOutboxDoneSQL = `UPDATE conversion_outbox
		SET status = 'done', updated_at = now() WHERE order_id = $1`

	markOutboxFailedSQL = `UPDATE conversion_outbox
		SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = now()
		WHERE order_id = $1`
)

var _ ads.Outbox = (*OutboxRepository)(nil)

// OutboxRepository implements the durable conversion event queue over
// the conversion_outbox table.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository returns an OutboxRepository that uses the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// MaxAttempts is the retry budget before an event is dead-lettered.
func (r *OutboxRepository) MaxAttempts() int { return maxOutboxAttempts }

// FetchPending returns up to limit pending events, oldest first, joined
// with the order's monetary aggregates.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]ads.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, fetchPendingOutboxSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching pending conversion events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ads.OutboxEvent, error) {
		var ev ads.OutboxEvent
		err := row.Scan(&ev.OrderID, &ev.TrackingCode, &ev.Attempts, &ev.Total, &ev.PlatformCommission)
		return ev, err
	})
}

// MarkDone transitions the event to done.
func (r *OutboxRepository) MarkDone(ctx context.Context, orderID string) error {
	if _, err := r.pool.Exec(ctx, markOutboxDoneSQL, orderID); err != nil {
		return fmt.Errorf("marking conversion event done for order %q: %w", orderID, err)
	}
	return nil
}

// MarkFailed increments the attempt counter and records the error. When
// dead is true the event moves to the dead-letter state.
func (r *OutboxRepository) MarkFailed(ctx context.Context, orderID, lastError string, dead bool) error {
	status := ads.OutboxPending
	if dead {
		status = ads.OutboxDead
	}
	if _, err := r.pool.Exec(ctx, markOutboxFailedSQL, orderID, status, lastError); err != nil {
		return fmt.Errorf("marking conversion event failed for order %q: %w", orderID, err)
	}
	return nil
}
