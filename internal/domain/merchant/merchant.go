// Package merchant defines seller tenants (dispensaries) and their
// marketplace settings.
package merchant

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a merchant does not exist.
var ErrNotFound = errors.New("merchant not found")

// Merchant is a seller tenant. TaxRate is the percentage embedded in
// the merchant's customer-facing prices. AdBonusPaid accumulates the
// ad-bonus amounts deducted from the merchant's payouts.
type Merchant struct {
	ID          string
	Name        string
	TaxRate     decimal.Decimal
	AdBonusPaid decimal.Decimal
}

// Repository defines lookup operations over merchants.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Merchant, error)
}
