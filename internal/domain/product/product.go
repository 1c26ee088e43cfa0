package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item sold by a merchant. Price is the
// customer-facing, tax-inclusive price set by the merchant. PoolItem
// marks B2B wholesale stock, which carries a lower platform commission.
type Product struct {
	ID         string
	MerchantID string
	Name       string
	Price      decimal.Decimal
	Category   string
	PoolItem   bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
