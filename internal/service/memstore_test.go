package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillpath/scheduling/internal/model"
)

// memStore is an in-memory implementation of SlotStore, BookingStore and
// AnalyticsStore. A single mutex gives it the same atomicity guarantees the
// Postgres repositories get from transactions, which makes the concurrency
// tests meaningful.
type memStore struct {
	mu        sync.Mutex
	slots     map[uuid.UUID]*model.AvailabilitySlot
	bookings  map[uuid.UUID]*model.SessionBooking
	analytics map[string][]*model.SessionAnalytics
}

func newMemStore() *memStore {
	return &memStore{
		slots:     make(map[uuid.UUID]*model.AvailabilitySlot),
		bookings:  make(map[uuid.UUID]*model.SessionBooking),
		analytics: make(map[string][]*model.SessionAnalytics),
	}
}

func dayKey(orgID uuid.UUID, date time.Time) string {
	return orgID.String() + "|" + date.Format(model.DateOnly)
}

func (m *memStore) Create(_ context.Context, slot *model.AvailabilitySlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	slot.UpdatedAt = slot.CreatedAt
	copied := *slot
	m.slots[slot.ID] = &copied
	return nil
}

func (m *memStore) GetByID(_ context.Context, orgID, id uuid.UUID) (*model.AvailabilitySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok || slot.OrganizationID != orgID || slot.DeletedAt != nil {
		return nil, nil
	}
	copied := *slot
	return &copied, nil
}

func (m *memStore) ListByConsultant(_ context.Context, orgID, consultantID uuid.UUID, filter SlotFilter) ([]*model.AvailabilitySlot, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AvailabilitySlot
	for _, slot := range m.slots {
		if slot.OrganizationID != orgID || slot.ConsultantID != consultantID || slot.DeletedAt != nil {
			continue
		}
		if filter.DayOfWeek != nil && (slot.DayOfWeek == nil || *slot.DayOfWeek != *filter.DayOfWeek) {
			continue
		}
		copied := *slot
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListActive(_ context.Context, orgID, consultantID uuid.UUID, from, to time.Time) ([]*model.AvailabilitySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AvailabilitySlot
	for _, slot := range m.slots {
		if slot.OrganizationID != orgID || slot.ConsultantID != consultantID || !slot.IsActive() {
			continue
		}
		if slot.IsRecurring {
			if slot.RecurringUntil != nil && slot.RecurringUntil.Before(from) {
				continue
			}
		} else if slot.DateSpecific == nil || slot.DateSpecific.Before(from) || slot.DateSpecific.After(to) {
			continue
		}
		copied := *slot
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, slot *model.AvailabilitySlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.slots[slot.ID]
	if !ok || existing.OrganizationID != slot.OrganizationID || existing.DeletedAt != nil {
		return &model.NotFoundError{Resource: "availability slot", ID: slot.ID}
	}
	copied := *slot
	m.slots[slot.ID] = &copied
	return nil
}

func (m *memStore) SoftDelete(_ context.Context, orgID, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok || slot.OrganizationID != orgID || slot.DeletedAt != nil {
		return &model.NotFoundError{Resource: "availability slot", ID: id}
	}
	slot.DeletedAt = &at
	return nil
}

// GetByID on BookingStore clashes with SlotStore's, so the booking and
// analytics sides are views over the same store.
type memBookings struct{ *memStore }

func (m *memStore) getBooking(orgID, id uuid.UUID) *model.SessionBooking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.OrganizationID != orgID || b.DeletedAt != nil {
		return nil
	}
	copied := *b
	return &copied
}

func (v memBookings) GetByID(_ context.Context, orgID, id uuid.UUID) (*model.SessionBooking, error) {
	return v.getBooking(orgID, id), nil
}

func (v memBookings) list(orgID uuid.UUID, match func(*model.SessionBooking) bool, filter BookingFilter) ([]*model.SessionBooking, int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*model.SessionBooking
	for _, b := range v.bookings {
		if b.OrganizationID != orgID || b.DeletedAt != nil || !match(b) {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.DateFrom != nil && b.ScheduledDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && b.ScheduledDate.After(*filter.DateTo) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (v memBookings) ListByBilan(_ context.Context, orgID, bilanID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error) {
	return v.list(orgID, func(b *model.SessionBooking) bool { return b.BilanID == bilanID }, filter)
}

func (v memBookings) ListByBeneficiary(_ context.Context, orgID, beneficiaryID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error) {
	return v.list(orgID, func(b *model.SessionBooking) bool { return b.BeneficiaryID == beneficiaryID }, filter)
}

func (v memBookings) ListByConsultant(_ context.Context, orgID, consultantID uuid.UUID, filter BookingFilter) ([]*model.SessionBooking, int64, error) {
	return v.list(orgID, func(b *model.SessionBooking) bool { return b.ConsultantID == consultantID }, filter)
}

func (v memBookings) ListActiveOverlapping(_ context.Context, orgID, consultantID uuid.UUID, date time.Time, window model.TimeRange) ([]*model.SessionBooking, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.activeOverlappingLocked(orgID, consultantID, date, window), nil
}

func (v memBookings) activeOverlappingLocked(orgID, consultantID uuid.UUID, date time.Time, window model.TimeRange) []*model.SessionBooking {
	var out []*model.SessionBooking
	for _, b := range v.bookings {
		if b.OrganizationID != orgID || b.ConsultantID != consultantID {
			continue
		}
		if !model.SameDate(b.ScheduledDate, date) || b.Status.IsTerminal() {
			continue
		}
		if !b.Window().Overlaps(window) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out
}

func (v memBookings) InsertWithCapacityCheck(_ context.Context, b *model.SessionBooking, instance *model.SlotInstance) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	active := v.activeOverlappingLocked(b.OrganizationID, instance.ConsultantID, instance.Date, instance.Window())
	if len(active) >= instance.Capacity {
		return &model.ConflictError{
			Reason: fmt.Sprintf("slot instance capacity %d exhausted at commit time", instance.Capacity),
		}
	}
	copied := *b
	v.bookings[b.ID] = &copied
	return nil
}

func (v memBookings) UpdateIfStatus(_ context.Context, orgID, id uuid.UUID, fromStatuses []model.BookingStatus, patch BookingPatch) (*model.SessionBooking, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.bookings[id]
	if !ok || b.OrganizationID != orgID || b.DeletedAt != nil {
		return nil, false, nil
	}

	allowed := false
	for _, s := range fromStatuses {
		if b.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		copied := *b
		return &copied, false, nil
	}

	b.Status = patch.Status
	b.UpdatedAt = time.Now().UTC()
	if patch.Attended != nil {
		b.Attended = patch.Attended
	}
	if patch.CancellationReason != nil {
		b.CancellationReason = *patch.CancellationReason
	}
	if patch.Rating != nil {
		b.BeneficiaryRating = patch.Rating
	}
	if patch.Feedback != nil {
		b.BeneficiaryFeedback = *patch.Feedback
	}
	if patch.ConfirmedAt != nil && b.ConfirmedAt == nil {
		b.ConfirmedAt = patch.ConfirmedAt
	}
	if patch.CompletedAt != nil && b.CompletedAt == nil {
		b.CompletedAt = patch.CompletedAt
	}
	if patch.CancelledAt != nil && b.CancelledAt == nil {
		b.CancelledAt = patch.CancelledAt
	}

	copied := *b
	return &copied, true, nil
}

func (v memBookings) ListByDate(_ context.Context, orgID uuid.UUID, date time.Time) ([]*model.SessionBooking, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*model.SessionBooking
	for _, b := range v.bookings {
		if b.OrganizationID != orgID || !model.SameDate(b.ScheduledDate, date) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (v memBookings) OrganizationsWithBookings(_ context.Context, date time.Time) ([]uuid.UUID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var orgs []uuid.UUID
	for _, b := range v.bookings {
		if model.SameDate(b.ScheduledDate, date) && !seen[b.OrganizationID] {
			seen[b.OrganizationID] = true
			orgs = append(orgs, b.OrganizationID)
		}
	}
	return orgs, nil
}

func (v memBookings) CountActiveForSlot(_ context.Context, orgID, slotID uuid.UUID) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var count int64
	for _, b := range v.bookings {
		if b.OrganizationID != orgID || b.AvailabilitySlotID == nil || *b.AvailabilitySlotID != slotID {
			continue
		}
		if !b.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

type memAnalytics struct{ *memStore }

func (v memAnalytics) ReplaceDay(_ context.Context, orgID uuid.UUID, date time.Time, rows []*model.SessionAnalytics) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	copied := make([]*model.SessionAnalytics, len(rows))
	for i, row := range rows {
		r := *row
		copied[i] = &r
	}
	v.analytics[dayKey(orgID, date)] = copied
	return nil
}

func (v memAnalytics) ListByConsultant(_ context.Context, orgID, consultantID uuid.UUID, from, to *time.Time) ([]*model.SessionAnalytics, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*model.SessionAnalytics
	for _, rows := range v.analytics {
		for _, row := range rows {
			if row.OrganizationID != orgID || row.ConsultantID != consultantID {
				continue
			}
			if from != nil && row.SessionDate.Before(*from) {
				continue
			}
			if to != nil && row.SessionDate.After(*to) {
				continue
			}
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}
