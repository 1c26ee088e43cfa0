package ads

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// DefaultProfitShare is the platform's assumed share of an order total,
// used to derive platform profit when the order does not carry a
// commission aggregate.
var DefaultProfitShare = decimal.RequireFromString("25")

// CommissionSplit is the result of splitting platform profit between an
// influencer's base tier commission and the merchant-funded ad bonus.
type CommissionSplit struct {
	PlatformProfit  decimal.Decimal
	BaseCommission  decimal.Decimal
	BonusCommission decimal.Decimal
	TotalCommission decimal.Decimal

	// MerchantPayoutDelta is the amount deducted from the merchant's
	// payout. Only the ad bonus is charged to the merchant; the base
	// tier commission comes out of the platform's own profit.
	MerchantPayoutDelta decimal.Decimal
}

// SplitCommission computes the influencer commission for an order.
// platformCommission is used as the profit base when positive;
// otherwise profit is derived as DefaultProfitShare percent of the
// order total. tierRate and bonusRate are percentages.
func SplitCommission(orderTotal, platformCommission, tierRate, bonusRate decimal.Decimal) CommissionSplit {
	profit := platformCommission
	if !profit.IsPositive() {
		profit = orderTotal.Mul(DefaultProfitShare).Div(hundred).Round(2)
	}

	base := profit.Mul(tierRate).Div(hundred).Round(2)
	bonus := profit.Mul(bonusRate).Div(hundred).Round(2)

	return CommissionSplit{
		PlatformProfit:      profit,
		BaseCommission:      base,
		BonusCommission:     bonus,
		TotalCommission:     base.Add(bonus),
		MerchantPayoutDelta: bonus,
	}
}

// OrderEvent carries the order facts the conversion processor needs.
type OrderEvent struct {
	OrderID            string
	TrackingCode       string
	Total              decimal.Decimal
	PlatformCommission decimal.Decimal
}

// Processor turns qualifying order events into conversion records.
type Processor struct {
	repo        Repository
	screen      *CodeScreen
	conversions metric.Int64Counter
	now         func() time.Time
}

// NewProcessor creates a conversion Processor. The screen may start
// empty; call LoadScreen to populate it from the repository.
func NewProcessor(repo Repository, screen *CodeScreen, meter metric.Meter) (*Processor, error) {
	conversions, err := meter.Int64Counter("ads.conversions.recorded")
	if err != nil {
		return nil, errors.Wrap(err, "create conversions counter")
	}
	return &Processor{repo: repo, screen: screen, conversions: conversions, now: time.Now}, nil
}

// LoadScreen rebuilds the tracking-code pre-screen from the active
// selections in the repository.
func (p *Processor) LoadScreen(ctx context.Context) error {
	codes, err := p.repo.ListActiveTrackingCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list active tracking codes")
	}
	p.screen.Reload(codes)
	return nil
}

// Process records the conversion for one order event. An event with no
// tracking code, or a code with no active selection, is a silent no-op:
// nothing is written. The conversion and every counter update are
// applied in a single transaction, with the order id as the dedup key,
// so replaying an already-processed event changes nothing.
func (p *Processor) Process(ctx context.Context, ev OrderEvent) error {
	if ev.TrackingCode == "" {
		return nil
	}

	// Bloom pre-screen: a definite miss skips the selection lookup.
	if !p.screen.Test(ev.TrackingCode) {
		return nil
	}

	sel, err := p.repo.FindActiveSelection(ctx, ev.TrackingCode)
	if err != nil {
		return errors.Wrap(err, "find selection")
	}
	if sel == nil {
		// Expected case: tracking code with no active selection.
		return nil
	}

	split := SplitCommission(ev.Total, ev.PlatformCommission, sel.TierRate, sel.BonusRate)

	c := Conversion{
		ID:                  uuid.New().String(),
		OrderID:             ev.OrderID,
		SelectionID:         sel.ID,
		AdID:                sel.AdID,
		MerchantID:          sel.MerchantID,
		InfluencerID:        sel.InfluencerID,
		PlatformProfit:      split.PlatformProfit,
		TierRate:            sel.TierRate,
		BonusRate:           sel.BonusRate,
		BaseCommission:      split.BaseCommission,
		BonusCommission:     split.BonusCommission,
		TotalCommission:     split.TotalCommission,
		MerchantPayoutDelta: split.MerchantPayoutDelta,
		CreatedAt:           p.now(),
	}

	if err := p.repo.ApplyConversion(ctx, c); err != nil {
		return errors.Wrap(err, "apply conversion")
	}

	zctx.From(ctx).Info("conversion recorded",
		zap.String("order_id", ev.OrderID),
		zap.String("selection_id", sel.ID),
		zap.String("influencer_id", sel.InfluencerID),
		zap.String("total_commission", split.TotalCommission.StringFixed(2)),
	)
	p.conversions.Add(ctx, 1)
	return nil
}
