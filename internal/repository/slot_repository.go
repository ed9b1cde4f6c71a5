package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillpath/scheduling/internal/model"
	"github.com/skillpath/scheduling/internal/repository/base"
	"github.com/skillpath/scheduling/internal/service"
)

const slotColumns = `id, organization_id, consultant_id, day_of_week, date_specific,
	start_minutes, end_minutes, timezone, duration_minutes, max_concurrent_bookings,
	is_recurring, recurring_until, is_available, created_at, updated_at, deleted_at`

type SlotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

func (r *SlotRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	query := `
		INSERT INTO availability_slots (id, organization_id, consultant_id, day_of_week, date_specific,
			start_minutes, end_minutes, timezone, duration_minutes, max_concurrent_bookings,
			is_recurring, recurring_until, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		slot.ID,
		slot.OrganizationID,
		slot.ConsultantID,
		slot.DayOfWeek,
		slot.DateSpecific,
		slot.StartTime.Minutes(),
		slot.EndTime.Minutes(),
		slot.Timezone,
		slot.DurationMinutes,
		slot.MaxConcurrentBookings,
		slot.IsRecurring,
		slot.RecurringUntil,
		slot.IsAvailable,
	).Scan(&slot.CreatedAt, &slot.UpdatedAt)

	if err != nil {
		return &model.PersistenceError{Op: "create slot", Err: err}
	}
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*model.AvailabilitySlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`

	slot, err := scanSlot(r.pool.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, &model.PersistenceError{Op: "get slot by id", Err: err}
	}
	return slot, nil
}

func (r *SlotRepository) ListByConsultant(ctx context.Context, orgID, consultantID uuid.UUID, filter service.SlotFilter) ([]*model.AvailabilitySlot, int64, error) {
	where := `
		WHERE organization_id = $1 AND consultant_id = $2 AND deleted_at IS NULL
	`
	args := []any{orgID, consultantID}

	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		where += fmt.Sprintf(" AND day_of_week = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		where += fmt.Sprintf(" AND (date_specific IS NULL OR date_specific >= $%d)", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		where += fmt.Sprintf(" AND (date_specific IS NULL OR date_specific <= $%d)", len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM availability_slots ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, &model.PersistenceError{Op: "count slots", Err: err}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := `SELECT ` + slotColumns + ` FROM availability_slots ` + where +
		fmt.Sprintf(" ORDER BY day_of_week NULLS LAST, date_specific NULLS LAST, start_minutes LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, &model.PersistenceError{Op: "list slots", Err: err}
	}
	defer rows.Close()

	var slots []*model.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, 0, &model.PersistenceError{Op: "scan slot", Err: err}
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &model.PersistenceError{Op: "list slots", Err: err}
	}
	return slots, total, nil
}

func (r *SlotRepository) ListActive(ctx context.Context, orgID, consultantID uuid.UUID, from, to time.Time) ([]*model.AvailabilitySlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE organization_id = $1
		  AND consultant_id = $2
		  AND deleted_at IS NULL
		  AND is_available = TRUE
		  AND (
		    (is_recurring AND recurring_until >= $3)
		    OR (date_specific IS NOT NULL AND date_specific >= $3 AND date_specific <= $4)
		  )
		ORDER BY start_minutes
	`

	rows, err := r.pool.Query(ctx, query, orgID, consultantID, from, to)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list active slots", Err: err}
	}
	defer rows.Close()

	var slots []*model.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, &model.PersistenceError{Op: "scan slot", Err: err}
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "list active slots", Err: err}
	}
	return slots, nil
}

func (r *SlotRepository) Update(ctx context.Context, slot *model.AvailabilitySlot) error {
	query := `
		UPDATE availability_slots
		SET day_of_week = $3, date_specific = $4, start_minutes = $5, end_minutes = $6,
			timezone = $7, duration_minutes = $8, max_concurrent_bookings = $9,
			is_recurring = $10, recurring_until = $11, is_available = $12, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`

	tag, err := r.pool.Exec(
		ctx, query,
		slot.ID,
		slot.OrganizationID,
		slot.DayOfWeek,
		slot.DateSpecific,
		slot.StartTime.Minutes(),
		slot.EndTime.Minutes(),
		slot.Timezone,
		slot.DurationMinutes,
		slot.MaxConcurrentBookings,
		slot.IsRecurring,
		slot.RecurringUntil,
		slot.IsAvailable,
	)
	if err != nil {
		return &model.PersistenceError{Op: "update slot", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Resource: "availability slot", ID: slot.ID}
	}
	return nil
}

func (r *SlotRepository) SoftDelete(ctx context.Context, orgID, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE availability_slots
		SET deleted_at = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, id, orgID, at)
	if err != nil {
		return &model.PersistenceError{Op: "delete slot", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Resource: "availability slot", ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	var startMinutes, endMinutes int
	err := row.Scan(
		&slot.ID,
		&slot.OrganizationID,
		&slot.ConsultantID,
		&slot.DayOfWeek,
		&slot.DateSpecific,
		&startMinutes,
		&endMinutes,
		&slot.Timezone,
		&slot.DurationMinutes,
		&slot.MaxConcurrentBookings,
		&slot.IsRecurring,
		&slot.RecurringUntil,
		&slot.IsAvailable,
		&slot.CreatedAt,
		&slot.UpdatedAt,
		&slot.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.StartTime = model.TimeOfDay(startMinutes)
	slot.EndTime = model.TimeOfDay(endMinutes)
	return &slot, nil
}
