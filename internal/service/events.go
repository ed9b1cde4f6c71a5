package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
)

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCompleted EventType = "booking.completed"
	EventBookingNoShow    EventType = "booking.no_show"
	EventBookingCancelled EventType = "booking.cancelled"
)

// Event is a booking lifecycle fact. An external dispatcher decides whether
// anyone gets notified; the engine only records that it happened.
type Event struct {
	Type           EventType           `json:"type"`
	OccurredAt     time.Time           `json:"occurred_at"`
	OrganizationID uuid.UUID           `json:"organization_id"`
	BookingID      uuid.UUID           `json:"booking_id"`
	ConsultantID   uuid.UUID           `json:"consultant_id"`
	BeneficiaryID  uuid.UUID           `json:"beneficiary_id"`
	Status         model.BookingStatus `json:"status"`
}

// EventPublisher is the narrow outbound port for lifecycle events. Publish
// is called after the owning transaction commits; failures are logged, never
// propagated back into the booking operation.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// LogPublisher writes events to the structured log. It is the default
// publisher; deployments with a real dispatcher swap it out at wiring time.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) {
	p.logger.Info("booking event",
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID.String()),
		zap.String("organization_id", event.OrganizationID.String()),
		zap.String("consultant_id", event.ConsultantID.String()),
		zap.String("beneficiary_id", event.BeneficiaryID.String()),
		zap.String("status", string(event.Status)),
	)
}

func newEvent(t EventType, b *model.SessionBooking) Event {
	return Event{
		Type:           t,
		OccurredAt:     time.Now().UTC(),
		OrganizationID: b.OrganizationID,
		BookingID:      b.ID,
		ConsultantID:   b.ConsultantID,
		BeneficiaryID:  b.BeneficiaryID,
		Status:         b.Status,
	}
}
