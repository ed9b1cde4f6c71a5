package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionAnalytics is a derived daily rollup, one row per
// (organization, consultant, session date). It is strictly a read model:
// recomputed from SessionBooking rows with overwrite semantics, never
// hand-edited.
type SessionAnalytics struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ConsultantID   uuid.UUID `json:"consultant_id"`
	SessionDate    time.Time `json:"session_date"`

	TotalSessionsScheduled int `json:"total_sessions_scheduled"`
	TotalSessionsCompleted int `json:"total_sessions_completed"`
	TotalSessionsNoShow    int `json:"total_sessions_no_show"`
	TotalSessionsCancelled int `json:"total_sessions_cancelled"`

	AverageRating       *float64 `json:"average_rating,omitempty"`
	TotalHoursCompleted float64  `json:"total_hours_completed"`

	ComputedAt time.Time `json:"computed_at"`
}
