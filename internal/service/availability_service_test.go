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

func newAvailabilityService() (*AvailabilityService, *memStore, model.Actor) {
	store := newMemStore()
	svc := NewAvailabilityService(store, memBookings{store}, zap.NewNop())
	actor := model.Actor{ID: uuid.New(), Role: model.RoleConsultant, OrganizationID: uuid.New()}
	return svc, store, actor
}

func validSlotInput(consultantID uuid.UUID) *model.AvailabilitySlot {
	weekday := 2
	until := date(2025, 12, 31)
	return &model.AvailabilitySlot{
		ConsultantID:          consultantID,
		DayOfWeek:             &weekday,
		StartTime:             9 * 60,
		EndTime:               17 * 60,
		Timezone:              "Europe/Paris",
		DurationMinutes:       60,
		MaxConcurrentBookings: 1,
		IsRecurring:           true,
		RecurringUntil:        &until,
	}
}

func TestCreateSlotAssignsIdentityAndOrganization(t *testing.T) {
	svc, _, actor := newAvailabilityService()

	created, err := svc.Create(context.Background(), actor, validSlotInput(actor.ID))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, actor.OrganizationID, created.OrganizationID)
	assert.True(t, created.IsAvailable)
	assert.Nil(t, created.DeletedAt)
}

func TestCreateSlotValidation(t *testing.T) {
	svc, _, actor := newAvailabilityService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*model.AvailabilitySlot)
		field  string
	}{
		{
			name: "both temporal kinds set",
			mutate: func(s *model.AvailabilitySlot) {
				specific := date(2025, 11, 14)
				s.DateSpecific = &specific
			},
			field: "day_of_week",
		},
		{
			name: "neither temporal kind set",
			mutate: func(s *model.AvailabilitySlot) {
				s.DayOfWeek = nil
			},
			field: "day_of_week",
		},
		{
			name: "day of week out of range",
			mutate: func(s *model.AvailabilitySlot) {
				bad := 7
				s.DayOfWeek = &bad
			},
			field: "day_of_week",
		},
		{
			name: "window inverted",
			mutate: func(s *model.AvailabilitySlot) {
				s.StartTime = 17 * 60
				s.EndTime = 9 * 60
			},
			field: "start_time",
		},
		{
			name: "unknown timezone",
			mutate: func(s *model.AvailabilitySlot) {
				s.Timezone = "Mars/Olympus_Mons"
			},
			field: "timezone",
		},
		{
			name: "zero capacity",
			mutate: func(s *model.AvailabilitySlot) {
				s.MaxConcurrentBookings = 0
			},
			field: "max_concurrent_bookings",
		},
		{
			name: "recurring without bound",
			mutate: func(s *model.AvailabilitySlot) {
				s.RecurringUntil = nil
			},
			field: "recurring_until",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validSlotInput(actor.ID)
			tc.mutate(input)

			_, err := svc.Create(ctx, actor, input)
			var validation *model.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tc.field, validation.Field)
		})
	}
}

func TestUpdateSlotRejectedWhileBooked(t *testing.T) {
	svc, store, actor := newAvailabilityService()
	ctx := context.Background()

	created, err := svc.Create(ctx, actor, validSlotInput(actor.ID))
	require.NoError(t, err)

	booking := &model.SessionBooking{
		ID:                 uuid.New(),
		OrganizationID:     actor.OrganizationID,
		BilanID:            uuid.New(),
		ConsultantID:       created.ConsultantID,
		BeneficiaryID:      uuid.New(),
		AvailabilitySlotID: &created.ID,
		ScheduledDate:      date(2025, 11, 4),
		StartTime:          9 * 60,
		EndTime:            10 * 60,
		DurationMinutes:    60,
		Timezone:           created.Timezone,
		SessionType:        model.SessionTypeFollowUp,
		MeetingFormat:      model.MeetingFormatVideo,
		Status:             model.BookingStatusScheduled,
	}
	instance := ExpandInstances(created, date(2025, 11, 4), date(2025, 11, 4))[0]
	require.NoError(t, memBookings{store}.InsertWithCapacityCheck(ctx, booking, &instance))

	patch := validSlotInput(actor.ID)
	patch.StartTime = 10 * 60
	_, err = svc.Update(ctx, actor, created.ID, patch)
	var conflict *model.ConflictError
	require.ErrorAs(t, err, &conflict)

	// Once the booking reaches a terminal status the guard lifts.
	reason := "rescheduled"
	now := time.Now().UTC()
	_, applied, err := memBookings{store}.UpdateIfStatus(ctx, actor.OrganizationID, booking.ID,
		[]model.BookingStatus{model.BookingStatusScheduled},
		BookingPatch{Status: model.BookingStatusCancelled, CancellationReason: &reason, CancelledAt: &now})
	require.NoError(t, err)
	require.True(t, applied)

	updated, err := svc.Update(ctx, actor, created.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, model.TimeOfDay(10*60), updated.StartTime)
}

func TestDeleteSlotStopsResolution(t *testing.T) {
	svc, store, actor := newAvailabilityService()
	ctx := context.Background()

	created, err := svc.Create(ctx, actor, validSlotInput(actor.ID))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, actor, created.ID))

	_, err = svc.Get(ctx, actor, created.ID)
	var notFound *model.NotFoundError
	require.ErrorAs(t, err, &notFound)

	resolver := NewSlotResolver(store, memBookings{store}, zap.NewNop())
	resolved, err := resolver.Resolve(ctx, actor.OrganizationID, created.ConsultantID, date(2025, 11, 1), date(2025, 11, 30))
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestListSlotsFilters(t *testing.T) {
	svc, _, actor := newAvailabilityService()
	ctx := context.Background()

	consultantID := actor.ID
	_, err := svc.Create(ctx, actor, validSlotInput(consultantID))
	require.NoError(t, err)

	other := validSlotInput(consultantID)
	monday := 1
	other.DayOfWeek = &monday
	_, err = svc.Create(ctx, actor, other)
	require.NoError(t, err)

	all, total, err := svc.List(ctx, actor, consultantID, SlotFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(2), total)

	mondays, total, err := svc.List(ctx, actor, consultantID, SlotFilter{DayOfWeek: &monday})
	require.NoError(t, err)
	require.Len(t, mondays, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, monday, *mondays[0].DayOfWeek)

	bad := 9
	_, _, err = svc.List(ctx, actor, consultantID, SlotFilter{DayOfWeek: &bad})
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)
}
