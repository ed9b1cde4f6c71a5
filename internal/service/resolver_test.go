package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func recurringSlot(weekday int, until time.Time) *model.AvailabilitySlot {
	return &model.AvailabilitySlot{
		ID:                    uuid.New(),
		OrganizationID:        uuid.New(),
		ConsultantID:          uuid.New(),
		DayOfWeek:             &weekday,
		StartTime:             9 * 60,
		EndTime:               12 * 60,
		Timezone:              "Europe/Paris",
		DurationMinutes:       60,
		MaxConcurrentBookings: 1,
		IsRecurring:           true,
		RecurringUntil:        &until,
		IsAvailable:           true,
		CreatedAt:             date(2025, 10, 1),
	}
}

func TestExpandInstancesRecurring(t *testing.T) {
	slot := recurringSlot(1, date(2025, 11, 30)) // Mondays

	instances := ExpandInstances(slot, date(2025, 11, 1), date(2025, 11, 30))
	require.Len(t, instances, 4) // Nov 3, 10, 17, 24
	assert.Equal(t, date(2025, 11, 3), instances[0].Date)
	assert.Equal(t, date(2025, 11, 24), instances[3].Date)
	for _, inst := range instances {
		assert.Equal(t, slot.ID, inst.SlotID)
		assert.Equal(t, slot.MaxConcurrentBookings, inst.CapacityRemaining)
		assert.Equal(t, model.TimeRange{Start: 9 * 60, End: 12 * 60}, inst.Window())
	}
}

func TestExpandInstancesHonorsRecurringUntil(t *testing.T) {
	slot := recurringSlot(1, date(2025, 11, 10))

	instances := ExpandInstances(slot, date(2025, 11, 1), date(2025, 11, 30))
	require.Len(t, instances, 2)
	assert.Equal(t, date(2025, 11, 10), instances[1].Date)
}

func TestExpandInstancesNeverBeforeCreation(t *testing.T) {
	slot := recurringSlot(1, date(2025, 12, 31))
	slot.CreatedAt = date(2025, 11, 12)

	instances := ExpandInstances(slot, date(2025, 11, 1), date(2025, 11, 30))
	require.Len(t, instances, 2) // Nov 17, 24
	assert.Equal(t, date(2025, 11, 17), instances[0].Date)
}

func TestExpandInstancesDateSpecific(t *testing.T) {
	specific := date(2025, 11, 14)
	slot := &model.AvailabilitySlot{
		ID:                    uuid.New(),
		ConsultantID:          uuid.New(),
		DateSpecific:          &specific,
		StartTime:             14 * 60,
		EndTime:               16 * 60,
		Timezone:              "Europe/Paris",
		DurationMinutes:       120,
		MaxConcurrentBookings: 3,
		IsAvailable:           true,
		CreatedAt:             date(2025, 10, 1),
	}

	assert.Len(t, ExpandInstances(slot, date(2025, 11, 1), date(2025, 11, 30)), 1)
	assert.Empty(t, ExpandInstances(slot, date(2025, 11, 15), date(2025, 11, 30)))
}

func TestExpandInstancesInactiveSlot(t *testing.T) {
	until := date(2025, 12, 31)

	unavailable := recurringSlot(1, until)
	unavailable.IsAvailable = false
	assert.Empty(t, ExpandInstances(unavailable, date(2025, 11, 1), date(2025, 11, 30)))

	deleted := recurringSlot(1, until)
	now := time.Now()
	deleted.DeletedAt = &now
	assert.Empty(t, ExpandInstances(deleted, date(2025, 11, 1), date(2025, 11, 30)))
}

func TestResolveSubtractsActiveBookings(t *testing.T) {
	store := newMemStore()
	bookings := memBookings{store}
	resolver := NewSlotResolver(store, bookings, zap.NewNop())
	ctx := context.Background()

	slot := recurringSlot(1, date(2025, 11, 30))
	slot.MaxConcurrentBookings = 2
	require.NoError(t, store.Create(ctx, slot))

	booking := &model.SessionBooking{
		ID:                 uuid.New(),
		OrganizationID:     slot.OrganizationID,
		BilanID:            uuid.New(),
		ConsultantID:       slot.ConsultantID,
		BeneficiaryID:      uuid.New(),
		AvailabilitySlotID: &slot.ID,
		ScheduledDate:      date(2025, 11, 3),
		StartTime:          9 * 60,
		EndTime:            10 * 60,
		DurationMinutes:    60,
		Timezone:           slot.Timezone,
		SessionType:        model.SessionTypeFollowUp,
		MeetingFormat:      model.MeetingFormatVideo,
		Status:             model.BookingStatusConfirmed,
	}
	instance := ExpandInstances(slot, date(2025, 11, 3), date(2025, 11, 3))[0]
	require.NoError(t, bookings.InsertWithCapacityCheck(ctx, booking, &instance))

	resolved, err := resolver.Resolve(ctx, slot.OrganizationID, slot.ConsultantID, date(2025, 11, 3), date(2025, 11, 10))
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, 1, resolved[0].CapacityRemaining)
	assert.Equal(t, 2, resolved[1].CapacityRemaining)
}

func TestResolveDropsFullInstances(t *testing.T) {
	store := newMemStore()
	bookings := memBookings{store}
	resolver := NewSlotResolver(store, bookings, zap.NewNop())
	ctx := context.Background()

	slot := recurringSlot(1, date(2025, 11, 30))
	slot.EndTime = 10 * 60 // single-unit window, capacity 1
	require.NoError(t, store.Create(ctx, slot))

	instance := ExpandInstances(slot, date(2025, 11, 3), date(2025, 11, 3))[0]
	booking := &model.SessionBooking{
		ID:                 uuid.New(),
		OrganizationID:     slot.OrganizationID,
		BilanID:            uuid.New(),
		ConsultantID:       slot.ConsultantID,
		BeneficiaryID:      uuid.New(),
		AvailabilitySlotID: &slot.ID,
		ScheduledDate:      date(2025, 11, 3),
		StartTime:          9 * 60,
		EndTime:            10 * 60,
		DurationMinutes:    60,
		Timezone:           slot.Timezone,
		SessionType:        model.SessionTypeFollowUp,
		MeetingFormat:      model.MeetingFormatVideo,
		Status:             model.BookingStatusScheduled,
	}
	require.NoError(t, bookings.InsertWithCapacityCheck(ctx, booking, &instance))

	resolved, err := resolver.Resolve(ctx, slot.OrganizationID, slot.ConsultantID, date(2025, 11, 3), date(2025, 11, 3))
	require.NoError(t, err)
	assert.Empty(t, resolved)

	// A cancelled booking releases its unit, so the instance reappears.
	reason := "reschedule"
	now := time.Now().UTC()
	_, applied, err := bookings.UpdateIfStatus(ctx, slot.OrganizationID, booking.ID,
		[]model.BookingStatus{model.BookingStatusScheduled},
		BookingPatch{Status: model.BookingStatusCancelled, CancellationReason: &reason, CancelledAt: &now})
	require.NoError(t, err)
	require.True(t, applied)

	resolved, err = resolver.Resolve(ctx, slot.OrganizationID, slot.ConsultantID, date(2025, 11, 3), date(2025, 11, 3))
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, 1, resolved[0].CapacityRemaining)
}

func TestResolveRejectsInvertedRange(t *testing.T) {
	store := newMemStore()
	resolver := NewSlotResolver(store, memBookings{store}, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), uuid.New(), uuid.New(), date(2025, 11, 10), date(2025, 11, 3))
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestResolveInstanceRequiresCoveringWindow(t *testing.T) {
	store := newMemStore()
	resolver := NewSlotResolver(store, memBookings{store}, zap.NewNop())
	ctx := context.Background()

	slot := recurringSlot(1, date(2025, 11, 30))
	require.NoError(t, store.Create(ctx, slot))

	covered, err := resolver.ResolveInstance(ctx, slot.OrganizationID, slot, date(2025, 11, 3), model.TimeRange{Start: 10 * 60, End: 11 * 60})
	require.NoError(t, err)
	require.NotNil(t, covered)
	assert.Equal(t, slot.ID, covered.SlotID)

	outside, err := resolver.ResolveInstance(ctx, slot.OrganizationID, slot, date(2025, 11, 3), model.TimeRange{Start: 11 * 60, End: 13 * 60})
	require.NoError(t, err)
	assert.Nil(t, outside)

	wrongDay, err := resolver.ResolveInstance(ctx, slot.OrganizationID, slot, date(2025, 11, 4), model.TimeRange{Start: 9 * 60, End: 10 * 60})
	require.NoError(t, err)
	assert.Nil(t, wrongDay)
}
