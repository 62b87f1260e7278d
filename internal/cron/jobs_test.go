package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/technoshop/technoshop-backend/pkg/logger"
)

type fakeOffers struct {
	detachErr  error
	deleteErr  error
	detachRuns int
	lastCutoff time.Time
}

func (f *fakeOffers) DetachExpired(context.Context) (int, error) {
	f.detachRuns++
	return 3, f.detachErr
}

func (f *fakeOffers) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return 1, f.deleteErr
}

type fakeDiscountRepo struct {
	lastCutoff time.Time
	err        error
	called     int
}

func (f *fakeDiscountRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	return 7, f.err
}

func newOfferJob(t *testing.T, offers *fakeOffers, retention time.Duration) *offerExpiryJob {
	t.Helper()
	jobIface, err := NewOfferExpiryJob(OfferExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Offers:    offers,
		Retention: retention,
	})
	if err != nil {
		t.Fatalf("NewOfferExpiryJob: %v", err)
	}
	return jobIface.(*offerExpiryJob)
}

func TestOfferExpiryJobUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)
	offers := &fakeOffers{}
	job := newOfferJob(t, offers, 48*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if offers.detachRuns != 1 {
		t.Fatalf("expected one detach pass, got %d", offers.detachRuns)
	}
	if want := now.Add(-48 * time.Hour); !offers.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, offers.lastCutoff)
	}
	if job.Name() != "offer-expiry" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
}

func TestOfferExpiryJobRunsBothPhasesAndCombinesErrors(t *testing.T) {
	offers := &fakeOffers{detachErr: errors.New("detach boom"), deleteErr: errors.New("delete boom")}
	job := newOfferJob(t, offers, 0)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "detach boom") || !strings.Contains(err.Error(), "delete boom") {
		t.Fatalf("expected both failures, got %v", err)
	}
	if offers.lastCutoff.IsZero() {
		t.Fatal("delete phase should run after detach failure")
	}
	if job.retention != defaultOfferRetention {
		t.Fatalf("expected default retention, got %s", job.retention)
	}
}

func TestDiscountCleanupJob(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeDiscountRepo{}
	jobIface, err := NewDiscountCleanupJob(DiscountCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewDiscountCleanupJob: %v", err)
	}
	job := jobIface.(*discountCleanupJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultDiscountRetention); !repo.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.lastCutoff)
	}

	repo.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestJobConstructorsRequireDeps(t *testing.T) {
	if _, err := NewOfferExpiryJob(OfferExpiryJobParams{}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewDiscountCleanupJob(DiscountCleanupJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected repository error")
	}
}
