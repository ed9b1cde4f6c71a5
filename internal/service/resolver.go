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

// ExpandInstances turns one slot template into its concrete dated instances
// within [from, to]. Pure: no store access, no capacity subtraction; every
// instance starts with full capacity. Recurring templates never expand
// before their creation date nor past recurring_until.
func ExpandInstances(slot *model.AvailabilitySlot, from, to time.Time) []model.SlotInstance {
	if !slot.IsActive() || to.Before(from) {
		return nil
	}

	var instances []model.SlotInstance
	add := func(date time.Time) {
		instances = append(instances, model.SlotInstance{
			SlotID:            slot.ID,
			ConsultantID:      slot.ConsultantID,
			Date:              time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			StartTime:         slot.StartTime,
			EndTime:           slot.EndTime,
			Timezone:          slot.Timezone,
			DurationMinutes:   slot.DurationMinutes,
			Capacity:          slot.MaxConcurrentBookings,
			CapacityRemaining: slot.MaxConcurrentBookings,
		})
	}

	if slot.DateSpecific != nil {
		date := *slot.DateSpecific
		if !date.Before(from) && !date.After(to) {
			add(date)
		}
		return instances
	}

	if slot.DayOfWeek == nil || slot.RecurringUntil == nil {
		return nil
	}

	start := from
	created := slot.CreatedAt.Truncate(24 * time.Hour)
	if created.After(start) {
		start = created
	}
	end := to
	if slot.RecurringUntil.Before(end) {
		end = *slot.RecurringUntil
	}

	weekday := time.Weekday(*slot.DayOfWeek)
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if date.Weekday() == weekday {
			add(date)
		}
	}
	return instances
}

// SlotResolver expands a consultant's templates into bookable instances and
// subtracts the capacity already consumed by active bookings.
type SlotResolver struct {
	slots    SlotStore
	bookings BookingStore
	logger   *zap.Logger
}

func NewSlotResolver(slots SlotStore, bookings BookingStore, logger *zap.Logger) *SlotResolver {
	return &SlotResolver{
		slots:    slots,
		bookings: bookings,
		logger:   logger,
	}
}

// Resolve returns the bookable instances of the consultant within
// [from, to], ordered by (date, start time). Instances with no remaining
// capacity are dropped. Overlapping templates resolve independently:
// capacity is never pooled across templates.
func (r *SlotResolver) Resolve(ctx context.Context, orgID, consultantID uuid.UUID, from, to time.Time) ([]model.SlotInstance, error) {
	if to.Before(from) {
		return nil, &model.ValidationError{Field: "date_to", Reason: "must not be before date_from"}
	}

	slots, err := r.slots.ListActive(ctx, orgID, consultantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}

	var resolved []model.SlotInstance
	for _, slot := range slots {
		for _, instance := range ExpandInstances(slot, from, to) {
			remaining, err := r.remainingCapacity(ctx, orgID, &instance)
			if err != nil {
				return nil, err
			}
			if remaining <= 0 {
				continue
			}
			instance.CapacityRemaining = remaining
			resolved = append(resolved, instance)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		if !resolved[i].Date.Equal(resolved[j].Date) {
			return resolved[i].Date.Before(resolved[j].Date)
		}
		return resolved[i].StartTime < resolved[j].StartTime
	})

	r.logger.Debug("resolved slot instances",
		zap.String("consultant_id", consultantID.String()),
		zap.Int("count", len(resolved)),
	)
	return resolved, nil
}

// ResolveInstance returns the single instance of the given slot covering the
// requested window on the requested date, with live remaining capacity. Used
// by the booking engine at write time; nil means the slot does not produce a
// covering instance.
func (r *SlotResolver) ResolveInstance(ctx context.Context, orgID uuid.UUID, slot *model.AvailabilitySlot, date time.Time, window model.TimeRange) (*model.SlotInstance, error) {
	for _, instance := range ExpandInstances(slot, date, date) {
		if !instance.Window().Contains(window) {
			continue
		}
		remaining, err := r.remainingCapacity(ctx, orgID, &instance)
		if err != nil {
			return nil, err
		}
		instance.CapacityRemaining = remaining
		return &instance, nil
	}
	return nil, nil
}

func (r *SlotResolver) remainingCapacity(ctx context.Context, orgID uuid.UUID, instance *model.SlotInstance) (int, error) {
	overlapping, err := r.bookings.ListActiveOverlapping(ctx, orgID, instance.ConsultantID, instance.Date, instance.Window())
	if err != nil {
		return 0, fmt.Errorf("count overlapping bookings: %w", err)
	}
	return instance.Capacity - len(overlapping), nil
}
