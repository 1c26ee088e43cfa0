package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wellnesstree/marketplace-api/internal/domain/ads"
)

// Lifecycle bundles the ad repository operations the scheduled jobs
// need.
type Lifecycle interface {
	ActivateDueAds(ctx context.Context, now time.Time) (int64, error)
	EndExpiredAds(ctx context.Context, now time.Time) (int64, error)
	AggregateDailyStats(ctx context.Context, day time.Time) (int64, error)
}

// ActivateAdsJob transitions scheduled ads whose start date has arrived
// to active.
func ActivateAdsJob(repo Lifecycle, lg *zap.Logger) Job {
	return func(ctx context.Context) error {
		n, err := repo.ActivateDueAds(ctx, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			lg.Info("ads activated", zap.Int64("count", n))
		}
		return nil
	}
}

// EndAdsJob transitions ads past their end date to ended.
func EndAdsJob(repo Lifecycle, lg *zap.Logger) Job {
	return func(ctx context.Context) error {
		n, err := repo.EndExpiredAds(ctx, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			lg.Info("ads ended", zap.Int64("count", n))
		}
		return nil
	}
}

// DailyAnalyticsJob rolls up the previous day's impressions, clicks,
// and conversions per active ad.
func DailyAnalyticsJob(repo Lifecycle, lg *zap.Logger) Job {
	return func(ctx context.Context) error {
		day := time.Now().AddDate(0, 0, -1)
		n, err := repo.AggregateDailyStats(ctx, day)
		if err != nil {
			return err
		}
		lg.Info("daily ad analytics aggregated",
			zap.String("day", day.Format("2006-01-02")),
			zap.Int64("ads", n),
		)
		return nil
	}
}

// outboxBatchSize bounds one conversion worker pass.
const outboxBatchSize = 100

// ConversionWorkerJob drains pending conversion events. Each event is
// processed independently: a failure increments its attempt counter
// (dead-lettering it once the budget is spent) without blocking the
// rest of the batch.
func ConversionWorkerJob(outbox ads.Outbox, processor *ads.Processor, maxAttempts int, lg *zap.Logger) Job {
	return func(ctx context.Context) error {
		events, err := outbox.FetchPending(ctx, outboxBatchSize)
		if err != nil {
			return err
		}

		for _, ev := range events {
			err := processor.Process(ctx, ads.OrderEvent{
				OrderID:            ev.OrderID,
				TrackingCode:       ev.TrackingCode,
				Total:              ev.Total,
				PlatformCommission: ev.PlatformCommission,
			})
			if err != nil {
				dead := ev.Attempts+1 >= maxAttempts
				if dead {
					lg.Error("conversion event dead-lettered",
						zap.String("order_id", ev.OrderID),
						zap.Int("attempts", ev.Attempts+1),
						zap.Error(err),
					)
				} else {
					lg.Warn("conversion event failed, will retry",
						zap.String("order_id", ev.OrderID),
						zap.Int("attempts", ev.Attempts+1),
						zap.Error(err),
					)
				}
				if markErr := outbox.MarkFailed(ctx, ev.OrderID, err.Error(), dead); markErr != nil {
					lg.Error("mark conversion event failed", zap.Error(markErr))
				}
				continue
			}

			if err := outbox.MarkDone(ctx, ev.OrderID); err != nil {
				lg.Error("mark conversion event done", zap.Error(err))
			}
		}
		return nil
	}
}
