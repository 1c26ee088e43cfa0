// Package order implements order assembly: validation, per-item price
// breakdown, shipment construction, numbering, and persistence.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Type discriminates the commission model applied to an order.
type Type string

const (
	TypeDispensary    Type = "dispensary"
	TypeTreehouse     Type = "treehouse"
	TypeHealerService Type = "healer-service"
)

// ShippingMethod is the delivery service level for a shipment.
type ShippingMethod string

const (
	ShipDoorToDoor     ShippingMethod = "door-to-door"
	ShipDoorToLocker   ShippingMethod = "door-to-locker"
	ShipLockerToDoor   ShippingMethod = "locker-to-door"
	ShipLockerToLocker ShippingMethod = "locker-to-locker"
)

// Status values for the overall order lifecycle.
const (
	StatusPlaced = "placed"
)

// Item is one order line with its full price decomposition attached.
// PlatformCommission and ProductionCost are already scaled by quantity;
// the per-unit breakdown fields are not. ProductionCost is nonzero only
// for treehouse lines, where it carries the markup margin above the
// creator's retail price so that
// LineTotal = BasePrice*Quantity + ProductionCost + PlatformCommission + TaxAmount
// holds for every order type.
type Item struct {
	ProductID          string          `json:"product_id"`
	Name               string          `json:"name"`
	Quantity           int             `json:"quantity"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	DispensarySetPrice decimal.Decimal `json:"dispensary_set_price"`
	BasePrice          decimal.Decimal `json:"base_price"`
	ProductionCost     decimal.Decimal `json:"production_cost"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	CommissionRate     decimal.Decimal `json:"commission_rate"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	SubtotalBeforeTax  decimal.Decimal `json:"subtotal_before_tax"`
	LineTotal          decimal.Decimal `json:"line_total"`
}

// StatusEntry is one append-only audit record in a status history.
type StatusEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Shipment is the per-merchant delivery sub-record of an order.
type Shipment struct {
	MerchantID     string         `json:"merchant_id"`
	Method         ShippingMethod `json:"method"`
	Status         string         `json:"status"`
	TrackingNumber string         `json:"tracking_number"`
	StatusHistory  []StatusEntry  `json:"status_history"`
}

// Order is one persisted checkout record. Created once, mutated only by
// appending to status histories.
type Order struct {
	ID            string
	OrderNumber   string
	UserID        string
	MerchantID    string
	OrderType     Type
	Status        string
	Items         []Item
	Shipments     map[string]Shipment
	StatusHistory []StatusEntry

	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal

	TotalDispensaryEarnings decimal.Decimal
	TotalPlatformCommission decimal.Decimal

	TrackingCode      string
	ReferralCode      string
	CreatorID         string
	CreatorName       string
	CreatorCommission decimal.Decimal

	CreatedAt time.Time
}

// Repository defines persistence operations for orders. Create must be
// atomic: either the order (and, when a tracking code is present, its
// conversion outbox event) is fully persisted, or nothing is.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
}
