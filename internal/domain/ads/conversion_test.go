package ads

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// --- Mock repository ---

type mockAdsRepo struct {
	ads        map[string]*Ad
	selections map[string]*Selection // keyed by tracking code
	applied    []Conversion
	applyErr   error

	impressions []Event
	clicks      []Event

	activated int64
	ended     int64
}

func (m *mockAdsRepo) GetAd(_ context.Context, id string) (*Ad, error) {
	ad, ok := m.ads[id]
	if !ok {
		return nil, ErrAdNotFound
	}
	return ad, nil
}

func (m *mockAdsRepo) RecordImpression(_ context.Context, ev Event) error {
	m.impressions = append(m.impressions, ev)
	return nil
}

func (m *mockAdsRepo) RecordClick(_ context.Context, ev Event) error {
	m.clicks = append(m.clicks, ev)
	return nil
}

func (m *mockAdsRepo) FindActiveSelection(_ context.Context, code string) (*Selection, error) {
	return m.selections[code], nil
}

func (m *mockAdsRepo) ApplyConversion(_ context.Context, c Conversion) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, c)
	return nil
}

func (m *mockAdsRepo) ListActiveTrackingCodes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(m.selections))
	for code := range m.selections {
		codes = append(codes, code)
	}
	return codes, nil
}

func (m *mockAdsRepo) ActivateDueAds(_ context.Context, _ time.Time) (int64, error) {
	return m.activated, nil
}

func (m *mockAdsRepo) EndExpiredAds(_ context.Context, _ time.Time) (int64, error) {
	return m.ended, nil
}

func (m *mockAdsRepo) AggregateDailyStats(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func newTestProcessor(t *testing.T, repo *mockAdsRepo) *Processor {
	t.Helper()
	p, err := NewProcessor(repo, NewCodeScreen(), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return p
}

// --- Tests ---

// Worked example from the commission policy: order total R1000,
// platform commission R250, tier 10%, bonus 5%.
func TestSplitCommission_Example(t *testing.T) {
	split := SplitCommission(d("1000"), d("250"), d("10"), d("5"))

	assert.True(t, d("250").Equal(split.PlatformProfit))
	assert.True(t, d("25").Equal(split.BaseCommission))
	assert.True(t, d("12.5").Equal(split.BonusCommission))
	assert.True(t, d("37.5").Equal(split.TotalCommission))
	// Only the ad bonus is charged to the merchant.
	assert.True(t, d("12.5").Equal(split.MerchantPayoutDelta))
}

func TestSplitCommission_DerivesProfitFromTotal(t *testing.T) {
	// No commission aggregate on the order: profit = 25% of total.
	split := SplitCommission(d("1000"), decimal.Zero, d("10"), d("5"))

	assert.True(t, d("250").Equal(split.PlatformProfit))
	assert.True(t, d("25").Equal(split.BaseCommission))
}

func TestProcess_RecordsConversion(t *testing.T) {
	repo := &mockAdsRepo{
		selections: map[string]*Selection{
			"TRACK123": {
				ID:           "s1",
				AdID:         "a1",
				MerchantID:   "m1",
				InfluencerID: "i1",
				TrackingCode: "TRACK123",
				Status:       SelectionActive,
				TierRate:     d("10"),
				BonusRate:    d("5"),
			},
		},
	}
	p := newTestProcessor(t, repo)

	err := p.Process(context.Background(), OrderEvent{
		OrderID:            "o1",
		TrackingCode:       "TRACK123",
		Total:              d("1000"),
		PlatformCommission: d("250"),
	})
	require.NoError(t, err)

	require.Len(t, repo.applied, 1)
	c := repo.applied[0]
	assert.Equal(t, "o1", c.OrderID)
	assert.Equal(t, "s1", c.SelectionID)
	assert.Equal(t, "i1", c.InfluencerID)
	assert.True(t, d("25").Equal(c.BaseCommission))
	assert.True(t, d("12.5").Equal(c.BonusCommission))
	assert.True(t, d("37.5").Equal(c.TotalCommission))
	assert.True(t, d("12.5").Equal(c.MerchantPayoutDelta))
}

func TestProcess_NoTrackingCodeIsSilentNoop(t *testing.T) {
	repo := &mockAdsRepo{}
	p := newTestProcessor(t, repo)

	err := p.Process(context.Background(), OrderEvent{OrderID: "o1", Total: d("100")})
	require.NoError(t, err)
	assert.Empty(t, repo.applied, "no conversion may be written without a tracking code")
}

func TestProcess_UnknownCodeIsSilentNoop(t *testing.T) {
	repo := &mockAdsRepo{selections: map[string]*Selection{}}
	p := newTestProcessor(t, repo)

	err := p.Process(context.Background(), OrderEvent{
		OrderID:      "o1",
		TrackingCode: "NOBODY",
		Total:        d("100"),
	})
	require.NoError(t, err)
	assert.Empty(t, repo.applied)
}

func TestProcess_ScreenSkipsDefiniteMisses(t *testing.T) {
	repo := &mockAdsRepo{
		selections: map[string]*Selection{
			"KNOWN": {ID: "s1", TrackingCode: "KNOWN", Status: SelectionActive, TierRate: d("10")},
		},
	}
	p := newTestProcessor(t, repo)
	require.NoError(t, p.LoadScreen(context.Background()))

	// A code absent from the screen never reaches the repository.
	err := p.Process(context.Background(), OrderEvent{
		OrderID:      "o1",
		TrackingCode: "ABSENT",
		Total:        d("100"),
	})
	require.NoError(t, err)
	assert.Empty(t, repo.applied)

	// A known code still converts.
	err = p.Process(context.Background(), OrderEvent{
		OrderID:      "o2",
		TrackingCode: "KNOWN",
		Total:        d("100"),
	})
	require.NoError(t, err)
	assert.Len(t, repo.applied, 1)
}

func TestCodeScreen_FailsOpenBeforeLoad(t *testing.T) {
	s := NewCodeScreen()
	assert.True(t, s.Test("anything"))

	s.Reload([]string{"ONE"})
	assert.True(t, s.Test("ONE"))
	assert.False(t, s.Test("TWO"))

	s.Add("TWO")
	assert.True(t, s.Test("TWO"))
}
