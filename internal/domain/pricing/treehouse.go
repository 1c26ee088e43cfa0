package pricing

import "github.com/shopspring/decimal"

// Treehouse (print-on-demand) orders use a flat split instead of the
// tax/commission model: the customer price is a fixed markup over the
// creator's retail price, and the platform takes a flat cut of retail.
var (
	// TreehouseMarkup is the factor between the creator's retail price
	// and the customer-facing price.
	TreehouseMarkup = decimal.NewFromInt(2)

	// TreehouseCommissionRate is the platform's flat cut of the
	// recovered retail price, as a percentage.
	TreehouseCommissionRate = decimal.RequireFromString("25")
)

// TreehouseSplit holds the flat creator/platform split for a
// print-on-demand item.
type TreehouseSplit struct {
	CustomerPrice      decimal.Decimal
	RetailPrice        decimal.Decimal
	ProductionCost     decimal.Decimal
	PlatformCommission decimal.Decimal
	CreatorEarnings    decimal.Decimal
}

// DecomposeTreehouse recovers the retail price from the customer price
// and applies the flat platform cut. The markup margin above retail is
// the production cost, so the parts always add back to the customer
// price. Tax-rate lookup is bypassed entirely for this model.
func DecomposeTreehouse(customerPrice decimal.Decimal) (TreehouseSplit, error) {
	if !customerPrice.IsPositive() {
		return TreehouseSplit{}, ErrNonPositivePrice
	}

	retail := customerPrice.Div(TreehouseMarkup).Round(2)
	commission := retail.Mul(TreehouseCommissionRate).Div(hundred).Round(2)

	return TreehouseSplit{
		CustomerPrice:      customerPrice,
		RetailPrice:        retail,
		ProductionCost:     customerPrice.Sub(retail),
		PlatformCommission: commission,
		CreatorEarnings:    retail.Sub(commission),
	}, nil
}
