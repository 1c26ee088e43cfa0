package ads

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Tracker records impression and click events against ads.
type Tracker struct {
	repo   Repository
	events metric.Int64Counter
	now    func() time.Time
}

// NewTracker creates a Tracker. The meter may come from the app's
// telemetry; events are counted by type.
func NewTracker(repo Repository, meter metric.Meter) (*Tracker, error) {
	events, err := meter.Int64Counter("ads.tracking.events")
	if err != nil {
		return nil, errors.Wrap(err, "create events counter")
	}
	return &Tracker{repo: repo, events: events, now: time.Now}, nil
}

// TrackImpressionRequest is the input for TrackImpression. Placement,
// UserID, and TrackingCode are optional.
type TrackImpressionRequest struct {
	AdID         string
	Placement    string
	UserID       string
	TrackingCode string
}

// TrackImpression validates the request, verifies the ad exists, and
// records the impression. It returns the new impression's id.
func (t *Tracker) TrackImpression(ctx context.Context, req TrackImpressionRequest) (string, error) {
	if req.AdID == "" {
		return "", ErrMissingAdID
	}

	if _, err := t.repo.GetAd(ctx, req.AdID); err != nil {
		return "", err
	}

	ev := Event{
		ID:           uuid.New().String(),
		AdID:         req.AdID,
		EventType:    EventImpression,
		Placement:    req.Placement,
		UserID:       req.UserID,
		TrackingCode: req.TrackingCode,
		CreatedAt:    t.now(),
	}
	if err := t.repo.RecordImpression(ctx, ev); err != nil {
		return "", errors.Wrap(err, "record impression")
	}

	t.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", EventImpression)))
	return ev.ID, nil
}

// TrackClickRequest is the input for TrackClick. Destination is
// required; UserID and TrackingCode are optional.
type TrackClickRequest struct {
	AdID         string
	Destination  string
	UserID       string
	TrackingCode string
}

// TrackClick validates the request, verifies the ad exists, and records
// the click. The repository recomputes the ad's click-through rate as
// part of the same write. It returns the new click's id.
func (t *Tracker) TrackClick(ctx context.Context, req TrackClickRequest) (string, error) {
	if req.AdID == "" {
		return "", ErrMissingAdID
	}
	if req.Destination == "" {
		return "", ErrMissingDestination
	}

	if _, err := t.repo.GetAd(ctx, req.AdID); err != nil {
		return "", err
	}

	ev := Event{
		ID:           uuid.New().String(),
		AdID:         req.AdID,
		EventType:    EventClick,
		Destination:  req.Destination,
		UserID:       req.UserID,
		TrackingCode: req.TrackingCode,
		CreatedAt:    t.now(),
	}
	if err := t.repo.RecordClick(ctx, ev); err != nil {
		return "", errors.Wrap(err, "record click")
	}

	t.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", EventClick)))
	return ev.ID, nil
}
