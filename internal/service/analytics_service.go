package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
)

// AnalyticsService rolls terminal-state bookings into per-consultant daily
// SessionAnalytics rows. Recomputation overwrites: running Aggregate twice
// for the same day yields identical rows, never double counts.
type AnalyticsService struct {
	bookings  BookingStore
	analytics AnalyticsStore
	logger    *zap.Logger
}

func NewAnalyticsService(bookings BookingStore, analytics AnalyticsStore, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		bookings:  bookings,
		analytics: analytics,
		logger:    logger,
	}
}

// Aggregate recomputes the rollup rows of one organization for one calendar
// date from scratch.
func (s *AnalyticsService) Aggregate(ctx context.Context, orgID uuid.UUID, date time.Time) error {
	bookings, err := s.bookings.ListByDate(ctx, orgID, date)
	if err != nil {
		return fmt.Errorf("list bookings for %s: %w", date.Format(model.DateOnly), err)
	}

	rows := computeRollups(orgID, date, bookings)
	if err := s.analytics.ReplaceDay(ctx, orgID, date, rows); err != nil {
		return fmt.Errorf("replace analytics for %s: %w", date.Format(model.DateOnly), err)
	}

	s.logger.Info("analytics aggregated",
		zap.String("organization_id", orgID.String()),
		zap.String("date", date.Format(model.DateOnly)),
		zap.Int("consultants", len(rows)),
	)
	return nil
}

// AggregateRange recomputes every day in [from, to] inclusive. Each day is
// independently retryable; a failure stops at that day.
func (s *AnalyticsService) AggregateRange(ctx context.Context, orgID uuid.UUID, from, to time.Time) error {
	if to.Before(from) {
		return &model.ValidationError{Field: "date_to", Reason: "must not be before date_from"}
	}
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if err := s.Aggregate(ctx, orgID, date); err != nil {
			return err
		}
	}
	return nil
}

// ListForConsultant returns the stored rollup rows of one consultant,
// optionally bounded by dates.
func (s *AnalyticsService) ListForConsultant(ctx context.Context, actor model.Actor, consultantID uuid.UUID, from, to *time.Time) ([]*model.SessionAnalytics, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, &model.ValidationError{Field: "date_to", Reason: "must not be before date_from"}
	}
	return s.analytics.ListByConsultant(ctx, actor.OrganizationID, consultantID, from, to)
}

// computeRollups is the pure aggregation step: group the day's bookings by
// consultant and fold them into counter rows.
func computeRollups(orgID uuid.UUID, date time.Time, bookings []*model.SessionBooking) []*model.SessionAnalytics {
	byConsultant := make(map[uuid.UUID][]*model.SessionBooking)
	for _, b := range bookings {
		byConsultant[b.ConsultantID] = append(byConsultant[b.ConsultantID], b)
	}

	now := time.Now().UTC()
	rows := make([]*model.SessionAnalytics, 0, len(byConsultant))
	for consultantID, group := range byConsultant {
		row := &model.SessionAnalytics{
			ID:             uuid.New(),
			OrganizationID: orgID,
			ConsultantID:   consultantID,
			SessionDate:    date,
			ComputedAt:     now,
		}

		var ratingSum, ratingCount int
		for _, b := range group {
			row.TotalSessionsScheduled++
			switch b.Status {
			case model.BookingStatusCompleted:
				row.TotalSessionsCompleted++
				row.TotalHoursCompleted += float64(b.DurationMinutes) / 60
				if b.BeneficiaryRating != nil {
					ratingSum += *b.BeneficiaryRating
					ratingCount++
				}
			case model.BookingStatusNoShow:
				row.TotalSessionsNoShow++
			case model.BookingStatusCancelled:
				row.TotalSessionsCancelled++
			}
		}
		if ratingCount > 0 {
			avg := float64(ratingSum) / float64(ratingCount)
			row.AverageRating = &avg
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ConsultantID.String() < rows[j].ConsultantID.String()
	})
	return rows
}
