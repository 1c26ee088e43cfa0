package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnesstree/marketplace-api/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (
			id, order_number, user_id, merchant_id, order_type, status,
			items, shipments, status_history,
			subtotal, shipping_cost, tax, total,
			dispensary_earnings, platform_commission,
			tracking_code, referral_code, creator_id, creator_name, creator_commission, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	enqueueOutboxSQL = `INSERT INTO conversion_outbox (order_id, tracking_code)
		VALUES ($1, $2) ON CONFLICT (order_id) DO NOTHING`

	getOrderByNumberSQL = `SELECT id, order_number, user_id, merchant_id, order_type, status,
			items, shipments, status_history,
			subtotal, shipping_cost, tax, total,
			dispensary_earnings, platform_commission,
			tracking_code, referral_code, creator_id, creator_name, creator_commission, created_at
		FROM orders WHERE order_number = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items, shipments, and the status history
// are serialized to JSON for the JSONB columns. When the order carries
// a tracking code, a conversion outbox event is enqueued in the same
// transaction, so the order and its pending conversion are atomic.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	shipmentsJSON, err := json.Marshal(o.Shipments)
	if err != nil {
		return fmt.Errorf("marshaling shipments: %w", err)
	}
	historyJSON, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshaling status history: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.OrderNumber, o.UserID, o.MerchantID, string(o.OrderType), o.Status,
		itemsJSON, shipmentsJSON, historyJSON,
		o.Subtotal, o.ShippingCost, o.Tax, o.Total,
		o.TotalDispensaryEarnings, o.TotalPlatformCommission,
		o.TrackingCode, o.ReferralCode, o.CreatorID, o.CreatorName, o.CreatorCommission, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.OrderNumber, err)
	}

	if o.TrackingCode != "" {
		if _, err := tx.Exec(ctx, enqueueOutboxSQL, o.ID, o.TrackingCode); err != nil {
			return fmt.Errorf("enqueue conversion event for order %q: %w", o.OrderNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

// GetByNumber returns the order with the given external order number.
func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByNumberSQL, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderNumber, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderNumber, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		typ       string
		itemsJSON []byte
		shipJSON  []byte
		histJSON  []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.MerchantID, &typ, &o.Status,
		&itemsJSON, &shipJSON, &histJSON,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total,
		&o.TotalDispensaryEarnings, &o.TotalPlatformCommission,
		&o.TrackingCode, &o.ReferralCode, &o.CreatorID, &o.CreatorName, &o.CreatorCommission, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	o.OrderType = order.Type(typ)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(shipJSON, &o.Shipments); err != nil {
		return o, fmt.Errorf("unmarshaling shipments: %w", err)
	}
	if err := json.Unmarshal(histJSON, &o.StatusHistory); err != nil {
		return o, fmt.Errorf("unmarshaling status history: %w", err)
	}
	return o, nil
}
