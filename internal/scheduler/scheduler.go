// Package scheduler drives the time-based parts of the booking lifecycle.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type bookingSweeper interface {
	StartDueBookings(ctx context.Context, now time.Time) (int, error)
	AutoCompleteBookings(ctx context.Context, now time.Time) (int, error)
}

type intentExpirer interface {
	ExpireStaleIntents(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	bookings bookingSweeper
	intents  intentExpirer
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func New(bookings bookingSweeper, intents intentExpirer, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		bookings: bookings,
		intents:  intents,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With(zap.String("component", "scheduler")),
	}
}

// Start blocks, sweeping every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	expired, err := s.intents.ExpireStaleIntents(ctx, now)
	if err != nil {
		s.log.Error("Failed to expire stale payment intents", zap.Error(err))
	}

	started, err := s.bookings.StartDueBookings(ctx, now)
	if err != nil {
		s.log.Error("Failed to start due bookings", zap.Error(err))
	}

	completed, err := s.bookings.AutoCompleteBookings(ctx, now)
	if err != nil {
		s.log.Error("Failed to auto-complete bookings", zap.Error(err))
	}

	if expired+started+completed > 0 {
		s.log.Info("Sweep finished",
			zap.Int("intents_expired", expired),
			zap.Int("bookings_started", started),
			zap.Int("bookings_completed", completed),
		)
	}
}
