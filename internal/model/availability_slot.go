package model

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilitySlot is a consultant-defined template of bookable time: either
// a weekly recurring window (DayOfWeek set) or a one-off window on a single
// date (DateSpecific set). Exactly one of the two must be present.
type AvailabilitySlot struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ConsultantID   uuid.UUID `json:"consultant_id"`

	DayOfWeek    *int       `json:"day_of_week,omitempty"`   // 0 = Sunday, 6 = Saturday
	DateSpecific *time.Time `json:"date_specific,omitempty"` // single calendar date

	StartTime       TimeOfDay `json:"start_time"`
	EndTime         TimeOfDay `json:"end_time"`
	Timezone        string    `json:"timezone"` // IANA name, e.g. Europe/Paris
	DurationMinutes int       `json:"duration_minutes"`

	MaxConcurrentBookings int `json:"max_concurrent_bookings"`

	IsRecurring    bool       `json:"is_recurring"`
	RecurringUntil *time.Time `json:"recurring_until,omitempty"`

	IsAvailable bool       `json:"is_available"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Window returns the slot's wall-clock interval.
func (s *AvailabilitySlot) Window() TimeRange {
	return TimeRange{Start: s.StartTime, End: s.EndTime}
}

// Location resolves the slot's IANA timezone.
func (s *AvailabilitySlot) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// IsActive reports whether the slot can still produce bookable instances.
func (s *AvailabilitySlot) IsActive() bool {
	return s.IsAvailable && s.DeletedAt == nil
}

// Validate checks the structural invariants of a slot template.
func (s *AvailabilitySlot) Validate() error {
	if s.ConsultantID == uuid.Nil {
		return &ValidationError{Field: "consultant_id", Reason: "is required"}
	}
	if (s.DayOfWeek == nil) == (s.DateSpecific == nil) {
		return &ValidationError{Field: "day_of_week", Reason: "exactly one of day_of_week and date_specific must be set"}
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return &ValidationError{Field: "day_of_week", Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
	}
	if s.StartTime >= s.EndTime {
		return &ValidationError{Field: "start_time", Reason: "must be before end_time"}
	}
	if s.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	}
	if s.Window().DurationMinutes()%s.DurationMinutes != 0 {
		return &ValidationError{Field: "duration_minutes", Reason: "must divide the slot window evenly"}
	}
	if s.MaxConcurrentBookings < 1 {
		return &ValidationError{Field: "max_concurrent_bookings", Reason: "must be at least 1"}
	}
	if s.DayOfWeek != nil && !s.IsRecurring {
		return &ValidationError{Field: "is_recurring", Reason: "must be true for weekly slots"}
	}
	if s.DateSpecific != nil && s.IsRecurring {
		return &ValidationError{Field: "is_recurring", Reason: "must be false for date-specific slots"}
	}
	if s.IsRecurring && s.RecurringUntil == nil {
		return &ValidationError{Field: "recurring_until", Reason: "is required for recurring slots"}
	}
	if _, err := s.Location(); err != nil {
		return &ValidationError{Field: "timezone", Reason: "must be a valid IANA timezone name"}
	}
	return nil
}

// SlotInstance is a concrete, dated expansion of an AvailabilitySlot,
// carrying the capacity left after subtracting active bookings. Times stay in
// the slot's own timezone; converting for a viewer is a presentation concern.
type SlotInstance struct {
	SlotID            uuid.UUID `json:"slot_id"`
	ConsultantID      uuid.UUID `json:"consultant_id"`
	Date              time.Time `json:"date"`
	StartTime         TimeOfDay `json:"start_time"`
	EndTime           TimeOfDay `json:"end_time"`
	Timezone          string    `json:"timezone"`
	DurationMinutes   int       `json:"duration_minutes"`
	Capacity          int       `json:"capacity"`
	CapacityRemaining int       `json:"capacity_remaining"`
}

// Window returns the instance's wall-clock interval.
func (i *SlotInstance) Window() TimeRange {
	return TimeRange{Start: i.StartTime, End: i.EndTime}
}
