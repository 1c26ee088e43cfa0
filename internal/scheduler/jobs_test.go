package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/wellnesstree/marketplace-api/internal/domain/ads"
)

// --- Lifecycle mock ---

type mockLifecycle struct {
	activated   int64
	ended       int64
	aggregated  int64
	activateErr error
	lastDay     time.Time
}

func (m *mockLifecycle) ActivateDueAds(_ context.Context, _ time.Time) (int64, error) {
	if m.activateErr != nil {
		return 0, m.activateErr
	}
	return m.activated, nil
}

func (m *mockLifecycle) EndExpiredAds(_ context.Context, _ time.Time) (int64, error) {
	return m.ended, nil
}

func (m *mockLifecycle) AggregateDailyStats(_ context.Context, day time.Time) (int64, error) {
	m.lastDay = day
	return m.aggregated, nil
}

// --- Ads repo mock for conversion worker ---

type workerAdsRepo struct {
	selections map[string]*ads.Selection
	applied    []ads.Conversion
	applyErr   error
}

func (m *workerAdsRepo) GetAd(_ context.Context, _ string) (*ads.Ad, error) {
	return nil, ads.ErrAdNotFound
}
func (m *workerAdsRepo) RecordImpression(_ context.Context, _ ads.Event) error { return nil }
func (m *workerAdsRepo) RecordClick(_ context.Context, _ ads.Event) error      { return nil }

func (m *workerAdsRepo) FindActiveSelection(_ context.Context, code string) (*ads.Selection, error) {
	return m.selections[code], nil
}

func (m *workerAdsRepo) ApplyConversion(_ context.Context, c ads.Conversion) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, c)
	return nil
}

func (m *workerAdsRepo) ListActiveTrackingCodes(_ context.Context) ([]string, error) {
	return nil, nil
}

func (m *workerAdsRepo) ActivateDueAds(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
func (m *workerAdsRepo) EndExpiredAds(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
func (m *workerAdsRepo) AggregateDailyStats(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// --- Outbox mock ---

type mockOutbox struct {
	pending []ads.OutboxEvent
	done    []string
	failed  []string
	dead    []string
}

func (m *mockOutbox) FetchPending(_ context.Context, _ int) ([]ads.OutboxEvent, error) {
	return m.pending, nil
}

func (m *mockOutbox) MarkDone(_ context.Context, orderID string) error {
	m.done = append(m.done, orderID)
	return nil
}

func (m *mockOutbox) MarkFailed(_ context.Context, orderID, _ string, dead bool) error {
	if dead {
		m.dead = append(m.dead, orderID)
	} else {
		m.failed = append(m.failed, orderID)
	}
	return nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// --- Tests ---

func TestActivateAdsJob(t *testing.T) {
	repo := &mockLifecycle{activated: 3}
	job := ActivateAdsJob(repo, zap.NewNop())
	require.NoError(t, job(context.Background()))
}

func TestActivateAdsJob_Error(t *testing.T) {
	repo := &mockLifecycle{activateErr: errors.New("db down")}
	job := ActivateAdsJob(repo, zap.NewNop())
	require.Error(t, job(context.Background()))
}

func TestDailyAnalyticsJob_AggregatesPreviousDay(t *testing.T) {
	repo := &mockLifecycle{aggregated: 2}
	job := DailyAnalyticsJob(repo, zap.NewNop())
	require.NoError(t, job(context.Background()))

	wantDay := time.Now().AddDate(0, 0, -1)
	assert.Equal(t, wantDay.Format("2006-01-02"), repo.lastDay.Format("2006-01-02"))
}

func newWorkerProcessor(t *testing.T, repo *workerAdsRepo) *ads.Processor {
	t.Helper()
	p, err := ads.NewProcessor(repo, ads.NewCodeScreen(), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return p
}

func TestConversionWorker_ProcessesAndMarksDone(t *testing.T) {
	repo := &workerAdsRepo{
		selections: map[string]*ads.Selection{
			"CODE1": {ID: "s1", AdID: "a1", MerchantID: "m1", InfluencerID: "i1",
				TierRate: d("10"), BonusRate: d("5")},
		},
	}
	outbox := &mockOutbox{
		pending: []ads.OutboxEvent{
			{OrderID: "o1", TrackingCode: "CODE1", Total: d("1000"), PlatformCommission: d("250")},
		},
	}

	job := ConversionWorkerJob(outbox, newWorkerProcessor(t, repo), 5, zap.NewNop())
	require.NoError(t, job(context.Background()))

	assert.Equal(t, []string{"o1"}, outbox.done)
	require.Len(t, repo.applied, 1)
	assert.True(t, d("37.5").Equal(repo.applied[0].TotalCommission))
}

func TestConversionWorker_UnknownCodeIsDoneNotFailed(t *testing.T) {
	repo := &workerAdsRepo{selections: map[string]*ads.Selection{}}
	outbox := &mockOutbox{
		pending: []ads.OutboxEvent{
			{OrderID: "o1", TrackingCode: "UNKNOWN", Total: d("100")},
		},
	}

	job := ConversionWorkerJob(outbox, newWorkerProcessor(t, repo), 5, zap.NewNop())
	require.NoError(t, job(context.Background()))

	// A code with no active selection is the expected silent no-op.
	assert.Equal(t, []string{"o1"}, outbox.done)
	assert.Empty(t, outbox.failed)
	assert.Empty(t, repo.applied)
}

func TestConversionWorker_RetriesThenDeadLetters(t *testing.T) {
	repo := &workerAdsRepo{
		selections: map[string]*ads.Selection{
			"CODE1": {ID: "s1", TierRate: d("10")},
		},
		applyErr: errors.New("deadlock"),
	}

	// Attempts below the budget stay pending.
	outbox := &mockOutbox{
		pending: []ads.OutboxEvent{
			{OrderID: "o1", TrackingCode: "CODE1", Total: d("100"), Attempts: 0},
		},
	}
	job := ConversionWorkerJob(outbox, newWorkerProcessor(t, repo), 5, zap.NewNop())
	require.NoError(t, job(context.Background()))
	assert.Equal(t, []string{"o1"}, outbox.failed)
	assert.Empty(t, outbox.dead)

	// The final attempt dead-letters.
	outbox = &mockOutbox{
		pending: []ads.OutboxEvent{
			{OrderID: "o1", TrackingCode: "CODE1", Total: d("100"), Attempts: 4},
		},
	}
	job = ConversionWorkerJob(outbox, newWorkerProcessor(t, repo), 5, zap.NewNop())
	require.NoError(t, job(context.Background()))
	assert.Equal(t, []string{"o1"}, outbox.dead)
	assert.Empty(t, outbox.failed)
}

func TestUntilNextDaily(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 30, 0, 0, time.UTC)

	// 01:00 today is still ahead.
	assert.Equal(t, 30*time.Minute, untilNextDaily(now, time.Hour))

	// Midnight already passed: next run is tomorrow.
	assert.Equal(t, 23*time.Hour+30*time.Minute, untilNextDaily(now, 0))
}
