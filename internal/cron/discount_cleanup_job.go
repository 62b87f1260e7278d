package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/technoshop/technoshop-backend/pkg/logger"
)

const defaultDiscountRetention = 90 * 24 * time.Hour

type DiscountCleanupJobParams struct {
	Logger     *logger.Logger
	Repository discountCleanupRepo
	Retention  time.Duration
}

type discountCleanupRepo interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewDiscountCleanupJob(params DiscountCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultDiscountRetention
	}
	return &discountCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type discountCleanupJob struct {
	logg      *logger.Logger
	repo      discountCleanupRepo
	retention time.Duration
	now       func() time.Time
}

func (j *discountCleanupJob) Name() string { return "discount-cleanup" }

func (j *discountCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("discount cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "discount cleanup complete")
	return nil
}
