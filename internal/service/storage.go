package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skillpath/scheduling/internal/model"
)

// SlotFilter narrows availability listings.
type SlotFilter struct {
	DayOfWeek *int
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	Status   *model.BookingStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// BookingPatch is the write-set of a status transition. Only non-nil fields
// are applied; the status and UpdatedAt always are.
type BookingPatch struct {
	Status             model.BookingStatus
	Attended           *bool
	CancellationReason *string
	Rating             *int
	Feedback           *string
	ConfirmedAt        *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
}

// SlotStore persists AvailabilitySlot templates. Every method is scoped to
// an organization; rows outside it behave as absent.
type SlotStore interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*model.AvailabilitySlot, error)
	ListByConsultant(ctx context.Context, orgID, consultantID uuid.UUID, filter SlotFilter) ([]*model.AvailabilitySlot, int64, error)
	// ListActive returns non-deleted, available slots whose validity overlaps
	// [from, to]: all recurring slots not expired before from, plus
	// date-specific slots inside the range.
	ListActive(ctx context.Context, orgID, consultantID uuid.UUID, from, to time.Time) ([]*model.AvailabilitySlot, error)
	Update(ctx context.Context, slot *model.AvailabilitySlot) error
	SoftDelete(ctx context.Context, orgID, id uuid.UUID, at time.Time) error
}

// BookingStore persists SessionBooking rows. InsertWithCapacityCheck and
// UpdateIfStatus are the two atomic capabilities the engine's invariants
// rest on; everything else is plain reads.
type BookingStore interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*model.SessionBooking, error)
	ListByBilan(ctx context.Context, orgID, bilanID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error)
	ListByBeneficiary(ctx context.Context, orgID, beneficiaryID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error)
	ListByConsultant(ctx context.Context, orgID, consultantID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error)

	// ListActiveOverlapping returns non-terminal bookings of the consultant on
	// the given date whose window overlaps the given one.
	ListActiveOverlapping(ctx context.Context, orgID, consultantID uuid.UUID, date time.Time, window model.TimeRange) ([]*model.SessionBooking, error)

	// InsertWithCapacityCheck inserts the booking if and only if, inside the
	// same transaction that inserts it, the count of non-terminal bookings
	// overlapping the instance window is still below the instance capacity.
	// Returns *model.ConflictError when the recheck fails.
	InsertWithCapacityCheck(ctx context.Context, booking *model.SessionBooking, instance *model.SlotInstance) error

	// UpdateIfStatus atomically applies patch when the booking's current
	// status is one of fromStatuses, and returns the row as stored afterwards
	// together with whether the patch was applied. A false return with a nil
	// error means the status guard failed; the returned row carries the
	// status that won.
	UpdateIfStatus(ctx context.Context, orgID, id uuid.UUID, fromStatuses []model.BookingStatus, patch BookingPatch) (*model.SessionBooking, bool, error)

	// ListByDate returns every booking of the organization scheduled on the
	// given calendar date, for analytics recomputation.
	ListByDate(ctx context.Context, orgID uuid.UUID, date time.Time) ([]*model.SessionBooking, error)

	// OrganizationsWithBookings returns the organizations having at least one
	// booking scheduled on the given date.
	OrganizationsWithBookings(ctx context.Context, date time.Time) ([]uuid.UUID, error)

	// CountActiveForSlot counts non-terminal bookings referencing the slot,
	// used to guard template mutation.
	CountActiveForSlot(ctx context.Context, orgID, slotID uuid.UUID) (int64, error)
}

// AnalyticsStore persists the derived daily rollups.
type AnalyticsStore interface {
	// ReplaceDay removes every rollup row of the organization for the date
	// and writes the given ones in a single transaction.
	ReplaceDay(ctx context.Context, orgID uuid.UUID, date time.Time, rows []*model.SessionAnalytics) error
	ListByConsultant(ctx context.Context, orgID, consultantID uuid.UUID, from, to *time.Time) ([]*model.SessionAnalytics, error)
}
