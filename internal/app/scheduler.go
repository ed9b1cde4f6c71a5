package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
	"github.com/skillpath/scheduling/internal/service"
)

// Scheduler runs the periodic analytics rollup. Recomputation is
// overwrite-based and order-insensitive, so it is safe to run on any single
// node and to re-run after a crash.
type Scheduler struct {
	analytics *service.AnalyticsService
	bookings  service.BookingStore
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
}

func NewScheduler(analytics *service.AnalyticsService, bookings service.BookingStore, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		analytics: analytics,
		bookings:  bookings,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the rollup task in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting analytics scheduler", zap.Duration("interval", s.interval))
	go s.runRollupTask(ctx)
}

// Stop terminates the background task.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping analytics scheduler")
	close(s.stopChan)
}

func (s *Scheduler) runRollupTask(ctx context.Context) {
	// First pass right at startup, then on the ticker.
	s.rollup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.rollup(ctx)
		case <-s.stopChan:
			s.logger.Info("analytics rollup task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("analytics rollup task cancelled")
			return
		}
	}
}

// rollup recomputes yesterday and today for every organization that has
// bookings on those dates. Yesterday is included so sessions closed after
// midnight still land in the right day's row.
func (s *Scheduler) rollup(ctx context.Context) {
	s.logger.Info("starting analytics rollup")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, date := range []time.Time{today.AddDate(0, 0, -1), today} {
		orgs, err := s.bookings.OrganizationsWithBookings(ctx, date)
		if err != nil {
			s.logger.Error("failed to list organizations for rollup",
				zap.Error(err),
				zap.String("date", date.Format(model.DateOnly)),
			)
			continue
		}

		for _, orgID := range orgs {
			if err := s.analytics.Aggregate(ctx, orgID, date); err != nil {
				s.logger.Error("failed to aggregate analytics",
					zap.Error(err),
					zap.String("organization_id", orgID.String()),
					zap.String("date", date.Format(model.DateOnly)),
				)
			}
		}
	}

	s.logger.Info("analytics rollup completed")
}
