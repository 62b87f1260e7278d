package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/technoshop/technoshop-backend/pkg/logger"
)

const defaultOfferRetention = 30 * 24 * time.Hour

// OfferExpiryJobParams configure the offer housekeeping job.
type OfferExpiryJobParams struct {
	Logger    *logger.Logger
	Offers    offerSweeper
	Retention time.Duration
}

type offerSweeper interface {
	DetachExpired(ctx context.Context) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOfferExpiryJob builds the job that detaches expired offers from their
// products and deletes offers past the retention window.
func NewOfferExpiryJob(params OfferExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOfferRetention
	}
	return &offerExpiryJob{
		logg:      params.Logger,
		offers:    params.Offers,
		retention: retention,
		now:       time.Now,
	}, nil
}

type offerExpiryJob struct {
	logg      *logger.Logger
	offers    offerSweeper
	retention time.Duration
	now       func() time.Time
}

func (j *offerExpiryJob) Name() string { return "offer-expiry" }

func (j *offerExpiryJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.detachExpired(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.deleteStale(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *offerExpiryJob) detachExpired(ctx context.Context) error {
	detached, err := j.offers.DetachExpired(ctx)
	if err != nil {
		return fmt.Errorf("detach expired offers: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "products_detached", detached), "expired offers detached")
	return nil
}

func (j *offerExpiryJob) deleteStale(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.offers.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete stale offers: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "stale offers deleted")
	return nil
}
