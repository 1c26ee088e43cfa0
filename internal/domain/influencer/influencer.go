// Package influencer defines marketing program members and their
// commission tiers.
package influencer

import (
	"github.com/shopspring/decimal"
)

// Influencer is a marketing program member. TierRate is the base
// commission percentage determined by their program tier; earnings
// accumulate as conversions are recorded.
type Influencer struct {
	ID              string
	Name            string
	TierRate        decimal.Decimal
	TotalEarnings   decimal.Decimal
	PendingEarnings decimal.Decimal
}
