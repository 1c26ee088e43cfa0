//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// The lifecycle transitions live entirely in SQL, so they are exercised
// against a real PostgreSQL here rather than mocked. Run with:
//
//	go test -tags integration ./internal/storage/postgres/
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "marketplace",
				"POSTGRES_PASSWORD": "marketplace",
				"POSTGRES_DB":       "marketplace_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		_ = pg.Terminate(context.Background())
	}()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://marketplace:marketplace@%s:%s/marketplace_test?sslmode=disable",
		host, port.Port())

	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	return m.Run()
}

// resetAds truncates everything the lifecycle tests touch so each test
// starts from a clean slate.
func resetAds(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`TRUNCATE ad_daily_analytics, ad_conversions, ad_events, ad_selections, ads, influencers CASCADE`)
	require.NoError(t, err)
}

func seedAd(t *testing.T, id, status string, start, end *time.Time) {
	t.Helper()
	ctx := context.Background()

	_, err := testPool.Exec(ctx,
		`INSERT INTO merchants (id, name) VALUES ('m-ads', 'Ads Dispensary') ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)

	_, err = testPool.Exec(ctx,
		`INSERT INTO ads (id, merchant_id, title, status, start_date, end_date)
		 VALUES ($1, 'm-ads', $2, $3, $4, $5)`,
		id, "Campaign "+id, status, start, end)
	require.NoError(t, err)
}

func adStatus(t *testing.T, id string) string {
	t.Helper()
	var status string
	err := testPool.QueryRow(context.Background(),
		`SELECT status FROM ads WHERE id = $1`, id).Scan(&status)
	require.NoError(t, err)
	return status
}

func seedEvent(t *testing.T, id, adID, eventType string, at time.Time) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO ad_events (id, ad_id, event_type, created_at) VALUES ($1, $2, $3, $4)`,
		id, adID, eventType, at)
	require.NoError(t, err)
}

func TestAdsRepository_ActivateDueAds(t *testing.T) {
	resetAds(t)
	repo := NewAdsRepository(testPool)

	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	seedAd(t, "ad-due", "scheduled", &yesterday, nil)
	seedAd(t, "ad-boundary", "scheduled", &now, nil)
	seedAd(t, "ad-future", "scheduled", &tomorrow, nil)
	seedAd(t, "ad-undated", "scheduled", nil, nil)
	seedAd(t, "ad-running", "active", &yesterday, nil)

	n, err := repo.ActivateDueAds(context.Background(), now)
	require.NoError(t, err)

	// A start date exactly at now counts as due.
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "active", adStatus(t, "ad-due"))
	assert.Equal(t, "active", adStatus(t, "ad-boundary"))
	assert.Equal(t, "scheduled", adStatus(t, "ad-future"))
	assert.Equal(t, "scheduled", adStatus(t, "ad-undated"))
	assert.Equal(t, "active", adStatus(t, "ad-running"))
}

func TestAdsRepository_EndExpiredAds(t *testing.T) {
	resetAds(t)
	repo := NewAdsRepository(testPool)

	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	seedAd(t, "ad-expired-active", "active", nil, &yesterday)
	seedAd(t, "ad-expired-scheduled", "scheduled", nil, &yesterday)
	seedAd(t, "ad-at-boundary", "active", nil, &now)
	seedAd(t, "ad-still-running", "active", nil, &tomorrow)
	seedAd(t, "ad-open-ended", "active", nil, nil)
	seedAd(t, "ad-already-ended", "ended", nil, &yesterday)

	n, err := repo.EndExpiredAds(context.Background(), now)
	require.NoError(t, err)

	// Expired ads end whether or not they ever ran; an end date exactly at
	// now has not expired yet.
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "ended", adStatus(t, "ad-expired-active"))
	assert.Equal(t, "ended", adStatus(t, "ad-expired-scheduled"))
	assert.Equal(t, "active", adStatus(t, "ad-at-boundary"))
	assert.Equal(t, "active", adStatus(t, "ad-still-running"))
	assert.Equal(t, "active", adStatus(t, "ad-open-ended"))
	assert.Equal(t, "ended", adStatus(t, "ad-already-ended"))
}

func TestAdsRepository_AggregateDailyStats(t *testing.T) {
	resetAds(t)
	repo := NewAdsRepository(testPool)
	ctx := context.Background()

	day := time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)
	seedAd(t, "ad-agg", "active", nil, nil)
	seedAd(t, "ad-ended", "ended", nil, nil)

	seedEvent(t, "ev-1", "ad-agg", "impression", day.Add(1*time.Hour))
	seedEvent(t, "ev-2", "ad-agg", "impression", day.Add(13*time.Hour))
	seedEvent(t, "ev-3", "ad-agg", "click", day.Add(14*time.Hour))
	// Outside the rollup day.
	seedEvent(t, "ev-4", "ad-agg", "impression", day.Add(25*time.Hour))
	// Ended ads are not rolled up.
	seedEvent(t, "ev-5", "ad-ended", "impression", day.Add(2*time.Hour))

	n, err := repo.AggregateDailyStats(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var impressions, clicks, conversions int64
	err = testPool.QueryRow(ctx,
		`SELECT impressions, clicks, conversions FROM ad_daily_analytics WHERE ad_id = 'ad-agg' AND day = $1`,
		day).Scan(&impressions, &clicks, &conversions)
	require.NoError(t, err)
	assert.Equal(t, int64(2), impressions)
	assert.Equal(t, int64(1), clicks)
	assert.Equal(t, int64(0), conversions)

	// Re-running the same day overwrites instead of duplicating.
	seedEvent(t, "ev-6", "ad-agg", "click", day.Add(15*time.Hour))
	_, err = repo.AggregateDailyStats(ctx, day)
	require.NoError(t, err)

	err = testPool.QueryRow(ctx,
		`SELECT impressions, clicks FROM ad_daily_analytics WHERE ad_id = 'ad-agg' AND day = $1`,
		day).Scan(&impressions, &clicks)
	require.NoError(t, err)
	assert.Equal(t, int64(2), impressions)
	assert.Equal(t, int64(2), clicks)
}
