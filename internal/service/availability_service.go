package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
)

// AvailabilityService owns AvailabilitySlot templates: creation, mutation
// guarded against active bookings, soft deletion, listing.
type AvailabilityService struct {
	slots    SlotStore
	bookings BookingStore
	logger   *zap.Logger
}

func NewAvailabilityService(slots SlotStore, bookings BookingStore, logger *zap.Logger) *AvailabilityService {
	return &AvailabilityService{
		slots:    slots,
		bookings: bookings,
		logger:   logger,
	}
}

// Create validates and persists a new slot template for the consultant.
func (s *AvailabilityService) Create(ctx context.Context, actor model.Actor, slot *model.AvailabilitySlot) (*model.AvailabilitySlot, error) {
	slot.ID = uuid.New()
	slot.OrganizationID = actor.OrganizationID
	slot.IsAvailable = true
	slot.DeletedAt = nil

	if err := slot.Validate(); err != nil {
		return nil, err
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("create availability slot: %w", err)
	}

	s.logger.Info("availability slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("consultant_id", slot.ConsultantID.String()),
		zap.String("organization_id", slot.OrganizationID.String()),
	)
	return slot, nil
}

// Get returns one slot within the actor's organization.
func (s *AvailabilityService) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AvailabilitySlot, error) {
	slot, err := s.slots.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, &model.NotFoundError{Resource: "availability slot", ID: id}
	}
	return slot, nil
}

// Update replaces the mutable fields of a slot template. Rejected with a
// conflict while any non-terminal booking references the slot, so bookings
// made against the old shape are never invalidated silently.
func (s *AvailabilityService) Update(ctx context.Context, actor model.Actor, id uuid.UUID, patch *model.AvailabilitySlot) (*model.AvailabilitySlot, error) {
	existing, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	active, err := s.bookings.CountActiveForSlot(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, fmt.Errorf("count active bookings for slot: %w", err)
	}
	if active > 0 {
		return nil, &model.ConflictError{
			Reason: fmt.Sprintf("slot has %d active bookings and cannot be modified", active),
		}
	}

	updated := *existing
	updated.DayOfWeek = patch.DayOfWeek
	updated.DateSpecific = patch.DateSpecific
	updated.StartTime = patch.StartTime
	updated.EndTime = patch.EndTime
	updated.Timezone = patch.Timezone
	updated.DurationMinutes = patch.DurationMinutes
	updated.MaxConcurrentBookings = patch.MaxConcurrentBookings
	updated.IsRecurring = patch.IsRecurring
	updated.RecurringUntil = patch.RecurringUntil
	updated.IsAvailable = patch.IsAvailable
	updated.UpdatedAt = time.Now().UTC()

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if err := s.slots.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update availability slot: %w", err)
	}

	s.logger.Info("availability slot updated",
		zap.String("slot_id", id.String()),
		zap.String("consultant_id", updated.ConsultantID.String()),
	)
	return &updated, nil
}

// Delete soft-deletes the slot. Future resolution stops producing instances
// for it; existing bookings keep their history and are not cascade-cancelled.
func (s *AvailabilityService) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := s.slots.SoftDelete(ctx, actor.OrganizationID, id, time.Now().UTC()); err != nil {
		return err
	}

	s.logger.Info("availability slot deleted",
		zap.String("slot_id", id.String()),
		zap.String("organization_id", actor.OrganizationID.String()),
	)
	return nil
}

// List returns the consultant's slot templates matching the filter, plus the
// unpaginated total.
func (s *AvailabilityService) List(ctx context.Context, actor model.Actor, consultantID uuid.UUID, filter SlotFilter) ([]*model.AvailabilitySlot, int64, error) {
	if filter.DayOfWeek != nil && (*filter.DayOfWeek < 0 || *filter.DayOfWeek > 6) {
		return nil, 0, &model.ValidationError{Field: "day_of_week", Reason: "must be between 0 and 6"}
	}
	return s.slots.ListByConsultant(ctx, actor.OrganizationID, consultantID, filter)
}
