package ads

import (
	"context"

	"github.com/shopspring/decimal"
)

// Outbox event states.
const (
	OutboxPending = "pending"
	OutboxDone    = "done"
	OutboxDead    = "dead"
)

// OutboxEvent is one durable order-created event awaiting conversion
// processing. Total and PlatformCommission are joined in from the
// order so the worker does not re-read it.
type OutboxEvent struct {
	OrderID            string
	TrackingCode       string
	Attempts           int
	Total              decimal.Decimal
	PlatformCommission decimal.Decimal
}

// Outbox is the durable queue of order events. Events are enqueued in
// the same transaction that persists the order, so a conversion is
// never lost between the order write and its processing.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkDone(ctx context.Context, orderID string) error

	// MarkFailed records a processing failure. When dead is true the
	// event moves to the dead-letter state and is no longer retried.
	MarkFailed(ctx context.Context, orderID, lastError string, dead bool) error
}
