// Package pricing decomposes customer-facing prices into merchant,
// platform, and tax portions.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Platform commission rates. Pool (B2B wholesale) items carry a lower
// rate than retail storefront items.
var (
	RetailRate = decimal.RequireFromString("25")
	PoolRate   = decimal.RequireFromString("10")
)

var hundred = decimal.NewFromInt(100)

// ErrNonPositivePrice is returned when a breakdown is requested for a
// zero or negative price.
var ErrNonPositivePrice = errors.New("price must be greater than 0")

// Breakdown holds the decomposition of a customer-facing price.
// BasePrice + Commission + Tax always reconstructs FinalPrice exactly,
// and FinalPrice always equals the input price.
type Breakdown struct {
	DispensarySetPrice decimal.Decimal
	BasePrice          decimal.Decimal
	Commission         decimal.Decimal
	CommissionRate     decimal.Decimal
	Tax                decimal.Decimal
	SubtotalBeforeTax  decimal.Decimal
	FinalPrice         decimal.Decimal
}

// Decompose splits dispensarySetPrice (tax-inclusive) into the
// merchant's base price, the platform commission, and the embedded tax.
// taxRate is a percentage (e.g. 15 for 15%). The commission rate is
// selected by poolItem.
//
// Tax and commission are rounded to 2 decimal places; the base price is
// derived by subtraction so no value is created or lost.
func Decompose(dispensarySetPrice, taxRate decimal.Decimal, poolItem bool) (Breakdown, error) {
	if !dispensarySetPrice.IsPositive() {
		return Breakdown{}, ErrNonPositivePrice
	}

	rate := RetailRate
	if poolItem {
		rate = PoolRate
	}

	subtotal := dispensarySetPrice
	if !taxRate.IsZero() {
		// price = subtotal * (1 + taxRate/100)
		divisor := hundred.Add(taxRate).Div(hundred)
		subtotal = dispensarySetPrice.Div(divisor)
	}

	tax := dispensarySetPrice.Sub(subtotal).Round(2)
	commission := subtotal.Mul(rate).Div(hundred).Round(2)
	base := dispensarySetPrice.Sub(tax).Sub(commission)

	return Breakdown{
		DispensarySetPrice: dispensarySetPrice,
		BasePrice:          base,
		Commission:         commission,
		CommissionRate:     rate,
		Tax:                tax,
		SubtotalBeforeTax:  subtotal.Round(2),
		FinalPrice:         base.Add(commission).Add(tax),
	}, nil
}
