// Package ads implements influencer advertising: impression and click
// tracking, conversion commission splits, and campaign lifecycle.
package ads

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Ad status values.
const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusEnded     = "ended"
)

// SelectionActive marks a selection eligible for conversions.
const SelectionActive = "active"

// Sentinel errors for the tracking operations.
var (
	ErrAdNotFound         = errors.New("ad not found")
	ErrMissingAdID        = errors.New("ad id required")
	ErrMissingDestination = errors.New("destination required")
)

// Ad is one merchant advertising campaign with rollup analytics.
type Ad struct {
	ID             string
	MerchantID     string
	Title          string
	Status         string
	BonusRate      decimal.Decimal
	StartDate      *time.Time
	EndDate        *time.Time
	Impressions    int64
	Clicks         int64
	Conversions    int64
	ClickRate      decimal.Decimal
	ConversionRate decimal.Decimal
}

// Selection links an influencer to an ad through a unique tracking
// code. Only active selections earn conversions.
type Selection struct {
	ID           string
	AdID         string
	MerchantID   string
	InfluencerID string
	TrackingCode string
	Status       string
	TierRate     decimal.Decimal
	BonusRate    decimal.Decimal
	Conversions  int64
	Earned       decimal.Decimal
}

// Conversion is the immutable record of one qualifying order's
// commission split. OrderID is the dedup key: at most one conversion
// exists per order.
type Conversion struct {
	ID                  string
	OrderID             string
	SelectionID         string
	AdID                string
	MerchantID          string
	InfluencerID        string
	PlatformProfit      decimal.Decimal
	TierRate            decimal.Decimal
	BonusRate           decimal.Decimal
	BaseCommission      decimal.Decimal
	BonusCommission     decimal.Decimal
	TotalCommission     decimal.Decimal
	MerchantPayoutDelta decimal.Decimal
	CreatedAt           time.Time
}

// Event is a raw impression or click fact.
type Event struct {
	ID           string
	AdID         string
	EventType    string
	Placement    string
	Destination  string
	UserID       string
	TrackingCode string
	CreatedAt    time.Time
}

// Event types stored in ad_events.
const (
	EventImpression = "impression"
	EventClick      = "click"
)

// DailyStat is one ad's aggregated activity for a single day.
type DailyStat struct {
	AdID        string
	Day         time.Time
	Impressions int64
	Clicks      int64
	Conversions int64
}

// Repository defines persistence for ads, selections, conversions, and
// raw events.
type Repository interface {
	GetAd(ctx context.Context, id string) (*Ad, error)
	RecordImpression(ctx context.Context, ev Event) error
	RecordClick(ctx context.Context, ev Event) error

	// FindActiveSelection returns the active selection for a tracking
	// code, joined with the influencer's tier rate and the ad's bonus
	// rate. A nil selection with a nil error means no active selection
	// exists for the code.
	FindActiveSelection(ctx context.Context, trackingCode string) (*Selection, error)

	// ApplyConversion persists the conversion and all its counter
	// updates (selection, ad, influencer earnings, merchant ad-bonus)
	// in one transaction. A conversion that already exists for the
	// order is a no-op.
	ApplyConversion(ctx context.Context, c Conversion) error

	// ListActiveTrackingCodes returns every tracking code with an
	// active selection, for the in-memory pre-screen.
	ListActiveTrackingCodes(ctx context.Context) ([]string, error)

	// Lifecycle transitions for the scheduler jobs.
	ActivateDueAds(ctx context.Context, now time.Time) (int64, error)
	EndExpiredAds(ctx context.Context, now time.Time) (int64, error)

	// AggregateDailyStats rolls the previous day's events per active ad
	// into ad_daily_analytics.
	AggregateDailyStats(ctx context.Context, day time.Time) (int64, error)
}
