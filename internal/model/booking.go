package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusScheduled  BookingStatus = "SCHEDULED"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
	BookingStatusNoShow     BookingStatus = "NO_SHOW"
)

// NonTerminalStatuses are the statuses that still consume slot capacity.
var NonTerminalStatuses = []BookingStatus{
	BookingStatusScheduled,
	BookingStatusConfirmed,
	BookingStatusInProgress,
}

// legalTransitions is the full state machine. Anything absent here is an
// illegal edge.
var legalTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusScheduled:  {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusInProgress, BookingStatusCompleted, BookingStatusNoShow, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusNoShow},
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusScheduled, BookingStatusConfirmed, BookingStatusInProgress,
		BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is accepted.
func (s BookingStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo reports whether the edge s → to is in the state machine.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SourcesOf returns every status from which `to` is reachable in one step.
func SourcesOf(to BookingStatus) []BookingStatus {
	var from []BookingStatus
	for src, targets := range legalTransitions {
		for _, t := range targets {
			if t == to {
				from = append(from, src)
			}
		}
	}
	return from
}

type SessionType string

const (
	SessionTypeInitialMeeting SessionType = "INITIAL_MEETING"
	SessionTypeFollowUp       SessionType = "FOLLOW_UP"
	SessionTypeReview         SessionType = "REVIEW"
	SessionTypeFinal          SessionType = "FINAL"
)

func (t SessionType) IsValid() bool {
	switch t {
	case SessionTypeInitialMeeting, SessionTypeFollowUp, SessionTypeReview, SessionTypeFinal:
		return true
	}
	return false
}

type MeetingFormat string

const (
	MeetingFormatInPerson MeetingFormat = "IN_PERSON"
	MeetingFormatVideo    MeetingFormat = "VIDEO"
	MeetingFormatPhone    MeetingFormat = "PHONE"
)

func (f MeetingFormat) IsValid() bool {
	switch f {
	case MeetingFormatInPerson, MeetingFormatVideo, MeetingFormatPhone:
		return true
	}
	return false
}

// SessionBooking is a beneficiary's reservation of a concrete time window
// with a consultant, tracked through the lifecycle state machine. Bookings
// are never hard-deleted; DeletedAt marks GDPR erasure independently of
// status.
type SessionBooking struct {
	ID                 uuid.UUID  `json:"id"`
	OrganizationID     uuid.UUID  `json:"organization_id"`
	BilanID            uuid.UUID  `json:"bilan_id"`
	ConsultantID       uuid.UUID  `json:"consultant_id"`
	BeneficiaryID      uuid.UUID  `json:"beneficiary_id"`
	AvailabilitySlotID *uuid.UUID `json:"availability_slot_id,omitempty"`

	ScheduledDate   time.Time `json:"scheduled_date"`
	StartTime       TimeOfDay `json:"scheduled_start_time"`
	EndTime         TimeOfDay `json:"scheduled_end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Timezone        string    `json:"timezone"`

	SessionType     SessionType   `json:"session_type"`
	MeetingFormat   MeetingFormat `json:"meeting_format"`
	MeetingLocation string        `json:"meeting_location,omitempty"`
	MeetingLink     string        `json:"meeting_link,omitempty"`
	Notes           string        `json:"notes,omitempty"`

	Status             BookingStatus `json:"status"`
	Attended           *bool         `json:"attended,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`

	BeneficiaryRating   *int   `json:"beneficiary_rating,omitempty"`
	BeneficiaryFeedback string `json:"beneficiary_feedback,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Window returns the booked wall-clock interval.
func (b *SessionBooking) Window() TimeRange {
	return TimeRange{Start: b.StartTime, End: b.EndTime}
}

// StartInstant materializes the session start in the booking's timezone.
func (b *SessionBooking) StartInstant() (time.Time, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return b.StartTime.On(b.ScheduledDate, loc), nil
}

// IsActive reports whether the booking still consumes slot capacity.
func (b *SessionBooking) IsActive() bool {
	return !b.Status.IsTerminal()
}
