package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
)

// createAttempts bounds the resolve-then-insert retry loop on commit-time
// conflicts.
const createAttempts = 3

// CreateBookingRequest carries everything needed to reserve a slot instance.
// Ad hoc (slot-less) bookings are not accepted: every booking references the
// template it was resolved from.
type CreateBookingRequest struct {
	BilanID            uuid.UUID           `json:"bilan_id"`
	ConsultantID       uuid.UUID           `json:"consultant_id"`
	BeneficiaryID      uuid.UUID           `json:"beneficiary_id"`
	AvailabilitySlotID uuid.UUID           `json:"availability_slot_id"`
	ScheduledDate      time.Time           `json:"scheduled_date"`
	StartTime          model.TimeOfDay     `json:"scheduled_start_time"`
	EndTime            model.TimeOfDay     `json:"scheduled_end_time"`
	SessionType        model.SessionType   `json:"session_type"`
	MeetingFormat      model.MeetingFormat `json:"meeting_format"`
	MeetingLocation    string              `json:"meeting_location"`
	MeetingLink        string              `json:"meeting_link"`
	Notes              string              `json:"notes"`
}

func (r *CreateBookingRequest) validate() error {
	switch {
	case r.BilanID == uuid.Nil:
		return &model.ValidationError{Field: "bilan_id", Reason: "is required"}
	case r.ConsultantID == uuid.Nil:
		return &model.ValidationError{Field: "consultant_id", Reason: "is required"}
	case r.BeneficiaryID == uuid.Nil:
		return &model.ValidationError{Field: "beneficiary_id", Reason: "is required"}
	case r.AvailabilitySlotID == uuid.Nil:
		return &model.ValidationError{Field: "availability_slot_id", Reason: "is required"}
	case r.ScheduledDate.IsZero():
		return &model.ValidationError{Field: "scheduled_date", Reason: "is required"}
	case r.StartTime >= r.EndTime:
		return &model.ValidationError{Field: "scheduled_start_time", Reason: "must be before scheduled_end_time"}
	case !r.SessionType.IsValid():
		return &model.ValidationError{Field: "session_type", Reason: "must be one of INITIAL_MEETING, FOLLOW_UP, REVIEW, FINAL"}
	case !r.MeetingFormat.IsValid():
		return &model.ValidationError{Field: "meeting_format", Reason: "must be one of IN_PERSON, VIDEO, PHONE"}
	}
	return nil
}

func (r *CreateBookingRequest) window() model.TimeRange {
	return model.TimeRange{Start: r.StartTime, End: r.EndTime}
}

// BookingEngine owns SessionBooking rows: it validates requested windows
// against live slot resolution, enforces the capacity invariant through the
// store's transactional insert, and drives the lifecycle state machine.
type BookingEngine struct {
	slots     SlotStore
	bookings  BookingStore
	resolver  *SlotResolver
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewBookingEngine(slots SlotStore, bookings BookingStore, resolver *SlotResolver, publisher EventPublisher, logger *zap.Logger) *BookingEngine {
	return &BookingEngine{
		slots:     slots,
		bookings:  bookings,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateBooking reserves the requested window against a freshly resolved
// slot instance. The resolve happens at write time, and the store re-checks
// the live overlap count inside the same transaction that inserts the row,
// so two concurrent requests can never both land in the last unit of
// capacity. A commit-time conflict restarts the whole resolve-then-insert
// sequence a bounded number of times.
func (e *BookingEngine) CreateBooking(ctx context.Context, actor model.Actor, req *CreateBookingRequest) (*model.SessionBooking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	slot, err := e.slots.GetByID(ctx, actor.OrganizationID, req.AvailabilitySlotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, &model.NotFoundError{Resource: "availability slot", ID: req.AvailabilitySlotID}
	}
	if slot.ConsultantID != req.ConsultantID {
		return nil, &model.ValidationError{Field: "availability_slot_id", Reason: "does not belong to the requested consultant"}
	}

	window := req.window()
	if !slot.Window().AlignsTo(window, slot.DurationMinutes) {
		return nil, &model.ValidationError{
			Field:  "scheduled_start_time",
			Reason: fmt.Sprintf("window must align to %d-minute units from %s", slot.DurationMinutes, slot.StartTime),
		}
	}

	var booking *model.SessionBooking
	backoff := retry.WithMaxRetries(createAttempts-1, retry.NewConstant(10*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		instance, err := e.resolver.ResolveInstance(ctx, actor.OrganizationID, slot, req.ScheduledDate, window)
		if err != nil {
			return err
		}
		if instance == nil || instance.CapacityRemaining < 1 {
			return &model.SlotUnavailableError{
				ConsultantID: req.ConsultantID,
				Date:         req.ScheduledDate,
				Window:       window,
			}
		}

		now := e.now().UTC()
		candidate := &model.SessionBooking{
			ID:                 uuid.New(),
			OrganizationID:     actor.OrganizationID,
			BilanID:            req.BilanID,
			ConsultantID:       req.ConsultantID,
			BeneficiaryID:      req.BeneficiaryID,
			AvailabilitySlotID: &slot.ID,
			ScheduledDate:      instance.Date,
			StartTime:          req.StartTime,
			EndTime:            req.EndTime,
			DurationMinutes:    window.DurationMinutes(),
			Timezone:           slot.Timezone,
			SessionType:        req.SessionType,
			MeetingFormat:      req.MeetingFormat,
			MeetingLocation:    req.MeetingLocation,
			MeetingLink:        req.MeetingLink,
			Notes:              req.Notes,
			Status:             model.BookingStatusScheduled,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if err := e.bookings.InsertWithCapacityCheck(ctx, candidate, instance); err != nil {
			var conflict *model.ConflictError
			if errors.As(err, &conflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		booking = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("bilan_id", booking.BilanID.String()),
		zap.String("consultant_id", booking.ConsultantID.String()),
		zap.String("beneficiary_id", booking.BeneficiaryID.String()),
		zap.String("date", booking.ScheduledDate.Format(model.DateOnly)),
	)
	e.publisher.Publish(ctx, newEvent(EventBookingCreated, booking))
	return booking, nil
}

// Confirm moves a booking from SCHEDULED to CONFIRMED and stamps
// confirmed_at exactly once.
func (e *BookingEngine) Confirm(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SessionBooking, error) {
	now := e.now().UTC()
	booking, err := e.transition(ctx, actor, id,
		[]model.BookingStatus{model.BookingStatusScheduled},
		BookingPatch{Status: model.BookingStatusConfirmed, ConfirmedAt: &now},
	)
	if err != nil {
		return nil, err
	}

	e.logger.Info("booking confirmed", zap.String("booking_id", id.String()))
	e.publisher.Publish(ctx, newEvent(EventBookingConfirmed, booking))
	return booking, nil
}

// Complete closes a CONFIRMED or IN_PROGRESS session. attended=true lands in
// COMPLETED and may record the beneficiary's rating and feedback, once;
// attended=false lands in NO_SHOW and rejects both.
func (e *BookingEngine) Complete(ctx context.Context, actor model.Actor, id uuid.UUID, attended bool, rating *int, feedback string) (*model.SessionBooking, error) {
	if !attended && (rating != nil || feedback != "") {
		return nil, &model.ValidationError{Field: "beneficiary_rating", Reason: "cannot be set when the beneficiary did not attend"}
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, &model.ValidationError{Field: "beneficiary_rating", Reason: "must be between 1 and 5"}
	}

	target := model.BookingStatusCompleted
	eventType := EventBookingCompleted
	if !attended {
		target = model.BookingStatusNoShow
		eventType = EventBookingNoShow
	}

	now := e.now().UTC()
	patch := BookingPatch{
		Status:      target,
		Attended:    &attended,
		CompletedAt: &now,
	}
	if attended {
		patch.Rating = rating
		if feedback != "" {
			patch.Feedback = &feedback
		}
	}

	booking, err := e.transition(ctx, actor, id,
		[]model.BookingStatus{model.BookingStatusConfirmed, model.BookingStatusInProgress},
		patch,
	)
	if err != nil {
		return nil, err
	}

	e.logger.Info("booking completed",
		zap.String("booking_id", id.String()),
		zap.Bool("attended", attended),
		zap.String("status", string(booking.Status)),
	)
	e.publisher.Publish(ctx, newEvent(eventType, booking))
	return booking, nil
}

// Cancel moves a SCHEDULED or CONFIRMED booking to CANCELLED. The reason is
// mandatory, and cancellation is refused once the session start instant has
// passed. Freed capacity is immediately visible to the resolver.
func (e *BookingEngine) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.SessionBooking, error) {
	if reason == "" {
		return nil, &model.ValidationError{Field: "cancellation_reason", Reason: "is required"}
	}

	current, err := e.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	start, err := current.StartInstant()
	if err != nil {
		return nil, fmt.Errorf("resolve session start: %w", err)
	}
	if !e.now().Before(start) {
		return nil, &model.ValidationError{Field: "id", Reason: "session has already started and can no longer be cancelled"}
	}

	now := e.now().UTC()
	booking, err := e.transition(ctx, actor, id,
		[]model.BookingStatus{model.BookingStatusScheduled, model.BookingStatusConfirmed},
		BookingPatch{Status: model.BookingStatusCancelled, CancellationReason: &reason, CancelledAt: &now},
	)
	if err != nil {
		return nil, err
	}

	e.logger.Info("booking cancelled",
		zap.String("booking_id", id.String()),
		zap.String("reason", reason),
	)
	e.publisher.Publish(ctx, newEvent(EventBookingCancelled, booking))
	return booking, nil
}

// Get returns one booking within the actor's organization.
func (e *BookingEngine) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SessionBooking, error) {
	booking, err := e.bookings.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, &model.NotFoundError{Resource: "booking", ID: id}
	}
	return booking, nil
}

// ListByBilan returns the bookings of one assessment case.
func (e *BookingEngine) ListByBilan(ctx context.Context, actor model.Actor, bilanID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error) {
	if err := validateBookingFilter(filter); err != nil {
		return nil, 0, err
	}
	return e.bookings.ListByBilan(ctx, actor.OrganizationID, bilanID, filter)
}

// ListByBeneficiary returns the bookings of one beneficiary.
func (e *BookingEngine) ListByBeneficiary(ctx context.Context, actor model.Actor, beneficiaryID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error) {
	if err := validateBookingFilter(filter); err != nil {
		return nil, 0, err
	}
	return e.bookings.ListByBeneficiary(ctx, actor.OrganizationID, beneficiaryID, filter)
}

// ListByConsultant returns the bookings of one consultant.
func (e *BookingEngine) ListByConsultant(ctx context.Context, actor model.Actor, consultantID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error) {
	if err := validateBookingFilter(filter); err != nil {
		return nil, 0, err
	}
	return e.bookings.ListByConsultant(ctx, actor.OrganizationID, consultantID, filter)
}

// transition applies a status-guarded patch. Concurrent transitions on the
// same booking are linearized by the store: exactly one caller observes
// applied=true, every loser gets InvalidStateTransition against the status
// that won.
func (e *BookingEngine) transition(ctx context.Context, actor model.Actor, id uuid.UUID, from []model.BookingStatus, patch BookingPatch) (*model.SessionBooking, error) {
	booking, applied, err := e.bookings.UpdateIfStatus(ctx, actor.OrganizationID, id, from, patch)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, &model.NotFoundError{Resource: "booking", ID: id}
	}
	if !applied {
		return nil, &model.InvalidStateTransitionError{From: booking.Status, To: patch.Status}
	}
	return booking, nil
}

func validateBookingFilter(filter BookingFilter) error {
	if filter.Status != nil && !filter.Status.IsValid() {
		return &model.ValidationError{Field: "status", Reason: "is not a known booking status"}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return &model.ValidationError{Field: "date_to", Reason: "must not be before date_from"}
	}
	return nil
}
