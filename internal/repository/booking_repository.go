package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillpath/scheduling/internal/model"
	"github.com/skillpath/scheduling/internal/repository/base"
	"github.com/skillpath/scheduling/internal/service"
)

const bookingColumns = `id, organization_id, bilan_id, consultant_id, beneficiary_id,
	availability_slot_id, scheduled_date, start_minutes, end_minutes, duration_minutes,
	timezone, session_type, meeting_format, meeting_location, meeting_link, notes,
	status, attended, cancellation_reason, beneficiary_rating, beneficiary_feedback,
	created_at, updated_at, confirmed_at, completed_at, cancelled_at, deleted_at`

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*model.SessionBooking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM session_bookings
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, &model.PersistenceError{Op: "get booking by id", Err: err}
	}
	return booking, nil
}

func (r *BookingRepository) ListByBilan(ctx context.Context, orgID, bilanID uuid.UUID, filter service.BookingFilter) ([]*model.SessionBooking, int64, error) {
	return r.list(ctx, orgID, "bilan_id", bilanID, filter)
}

func (r *BookingRepository) ListByBeneficiary(ctx context.Context, orgID, beneficiaryID uuid.UUID, filter service.BookingFilter) ([]*model.SessionBooking, int64, error) {
	return r.list(ctx, orgID, "beneficiary_id", beneficiaryID, filter)
}

func (r *BookingRepository) ListByConsultant(ctx context.Context, orgID, consultantID uuid.UUID, filter service.BookingFilter) ([]*model.SessionBooking, int64, error) {
	return r.list(ctx, orgID, "consultant_id", consultantID, filter)
}

func (r *BookingRepository) list(ctx context.Context, orgID uuid.UUID, scopeColumn string, scopeID uuid.UUID, filter service.BookingFilter) ([]*model.SessionBooking, int64, error) {
	where := fmt.Sprintf(`WHERE organization_id = $1 AND %s = $2 AND deleted_at IS NULL`, scopeColumn)
	args := []any{orgID, scopeID}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		where += fmt.Sprintf(" AND scheduled_date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		where += fmt.Sprintf(" AND scheduled_date <= $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM session_bookings `+where, args...).Scan(&total); err != nil {
		return nil, 0, &model.PersistenceError{Op: "count bookings", Err: err}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := `SELECT ` + bookingColumns + ` FROM session_bookings ` + where +
		fmt.Sprintf(" ORDER BY scheduled_date DESC, start_minutes DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, &model.PersistenceError{Op: "list bookings", Err: err}
	}
	defer rows.Close()

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *BookingRepository) ListActiveOverlapping(ctx context.Context, orgID, consultantID uuid.UUID, date time.Time, window model.TimeRange) ([]*model.SessionBooking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM session_bookings
		WHERE organization_id = $1
		  AND consultant_id = $2
		  AND scheduled_date = $3
		  AND status = ANY($4)
		  AND start_minutes < $5
		  AND end_minutes > $6
		ORDER BY start_minutes
	`

	rows, err := r.pool.Query(ctx, query, orgID, consultantID, date,
		statusStrings(model.NonTerminalStatuses), window.End.Minutes(), window.Start.Minutes())
	if err != nil {
		return nil, &model.PersistenceError{Op: "list overlapping bookings", Err: err}
	}
	defer rows.Close()

	return scanBookings(rows)
}

// InsertWithCapacityCheck closes the check-then-write gap: it locks the slot
// row, recounts the overlapping non-terminal bookings inside the same
// transaction, and inserts only while the count is below capacity. The loser
// of a race gets *model.ConflictError.
func (r *BookingRepository) InsertWithCapacityCheck(ctx context.Context, b *model.SessionBooking, instance *model.SlotInstance) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &model.PersistenceError{Op: "begin booking transaction", Err: err}
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent inserts against the same template.
	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM availability_slots WHERE id = $1 FOR UPDATE`, instance.SlotID).Scan(&lockedID)
	if err != nil {
		if base.IsNotFound(err) {
			return &model.NotFoundError{Resource: "availability slot", ID: instance.SlotID}
		}
		return &model.PersistenceError{Op: "lock slot row", Err: err}
	}

	active, err := countActiveOverlapping(ctx, tx, b.OrganizationID, instance.ConsultantID, instance.Date, instance.Window())
	if err != nil {
		return &model.PersistenceError{Op: "recount slot capacity", Err: err}
	}
	if active >= instance.Capacity {
		return &model.ConflictError{
			Reason: fmt.Sprintf("slot instance capacity %d exhausted at commit time", instance.Capacity),
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO session_bookings (id, organization_id, bilan_id, consultant_id, beneficiary_id,
			availability_slot_id, scheduled_date, start_minutes, end_minutes, duration_minutes,
			timezone, session_type, meeting_format, meeting_location, meeting_link, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		b.ID, b.OrganizationID, b.BilanID, b.ConsultantID, b.BeneficiaryID,
		b.AvailabilitySlotID, b.ScheduledDate, b.StartTime.Minutes(), b.EndTime.Minutes(), b.DurationMinutes,
		b.Timezone, string(b.SessionType), string(b.MeetingFormat), b.MeetingLocation, b.MeetingLink, b.Notes,
		string(b.Status),
	)
	if err != nil {
		if base.IsSerializationFailure(err) || base.IsUniqueViolation(err) {
			return &model.ConflictError{Reason: "concurrent booking transaction, retry"}
		}
		return &model.PersistenceError{Op: "insert booking", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		if base.IsSerializationFailure(err) {
			return &model.ConflictError{Reason: "concurrent booking transaction, retry"}
		}
		return &model.PersistenceError{Op: "commit booking", Err: err}
	}
	return nil
}

// UpdateIfStatus is the status-guarded single-row update behind every
// lifecycle transition. Transition timestamps use COALESCE so each one is
// written exactly once.
func (r *BookingRepository) UpdateIfStatus(ctx context.Context, orgID, id uuid.UUID, fromStatuses []model.BookingStatus, patch service.BookingPatch) (*model.SessionBooking, bool, error) {
	query := `
		UPDATE session_bookings
		SET status = $4,
			attended = COALESCE($5, attended),
			cancellation_reason = COALESCE($6, cancellation_reason),
			beneficiary_rating = COALESCE($7, beneficiary_rating),
			beneficiary_feedback = COALESCE($8, beneficiary_feedback),
			confirmed_at = COALESCE(confirmed_at, $9),
			completed_at = COALESCE(completed_at, $10),
			cancelled_at = COALESCE(cancelled_at, $11),
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = ANY($3) AND deleted_at IS NULL
		RETURNING ` + bookingColumns

	booking, err := scanBooking(r.pool.QueryRow(
		ctx, query,
		id, orgID, statusStrings(fromStatuses),
		string(patch.Status),
		patch.Attended,
		patch.CancellationReason,
		patch.Rating,
		patch.Feedback,
		patch.ConfirmedAt,
		patch.CompletedAt,
		patch.CancelledAt,
	))
	if err == nil {
		return booking, true, nil
	}
	if !base.IsNotFound(err) {
		return nil, false, &model.PersistenceError{Op: "update booking status", Err: err}
	}

	// Guard failed or row absent; fetch to tell the two apart.
	current, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *BookingRepository) ListByDate(ctx context.Context, orgID uuid.UUID, date time.Time) ([]*model.SessionBooking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM session_bookings
		WHERE organization_id = $1 AND scheduled_date = $2
		ORDER BY consultant_id, start_minutes
	`

	rows, err := r.pool.Query(ctx, query, orgID, date)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list bookings by date", Err: err}
	}
	defer rows.Close()

	return scanBookings(rows)
}

func (r *BookingRepository) OrganizationsWithBookings(ctx context.Context, date time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT organization_id
		FROM session_bookings
		WHERE scheduled_date = $1
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list organizations with bookings", Err: err}
	}
	defer rows.Close()

	var orgs []uuid.UUID
	for rows.Next() {
		var orgID uuid.UUID
		if err := rows.Scan(&orgID); err != nil {
			return nil, &model.PersistenceError{Op: "scan organization id", Err: err}
		}
		orgs = append(orgs, orgID)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "list organizations with bookings", Err: err}
	}
	return orgs, nil
}

func (r *BookingRepository) CountActiveForSlot(ctx context.Context, orgID, slotID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM session_bookings
		WHERE organization_id = $1 AND availability_slot_id = $2 AND status = ANY($3)
	`

	var count int64
	err := r.pool.QueryRow(ctx, query, orgID, slotID, statusStrings(model.NonTerminalStatuses)).Scan(&count)
	if err != nil {
		return 0, &model.PersistenceError{Op: "count active bookings for slot", Err: err}
	}
	return count, nil
}

// countActiveOverlapping runs over either the pool or a transaction; the
// capacity recheck must run on the tx that inserts.
func countActiveOverlapping(ctx context.Context, q base.Querier, orgID, consultantID uuid.UUID, date time.Time, window model.TimeRange) (int, error) {
	var active int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM session_bookings
		WHERE organization_id = $1
		  AND consultant_id = $2
		  AND scheduled_date = $3
		  AND status = ANY($4)
		  AND start_minutes < $5
		  AND end_minutes > $6
	`, orgID, consultantID, date,
		statusStrings(model.NonTerminalStatuses),
		window.End.Minutes(), window.Start.Minutes(),
	).Scan(&active)
	return active, err
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanBooking(row rowScanner) (*model.SessionBooking, error) {
	var b model.SessionBooking
	var startMinutes, endMinutes int
	var sessionType, meetingFormat, status string
	err := row.Scan(
		&b.ID,
		&b.OrganizationID,
		&b.BilanID,
		&b.ConsultantID,
		&b.BeneficiaryID,
		&b.AvailabilitySlotID,
		&b.ScheduledDate,
		&startMinutes,
		&endMinutes,
		&b.DurationMinutes,
		&b.Timezone,
		&sessionType,
		&meetingFormat,
		&b.MeetingLocation,
		&b.MeetingLink,
		&b.Notes,
		&status,
		&b.Attended,
		&b.CancellationReason,
		&b.BeneficiaryRating,
		&b.BeneficiaryFeedback,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.ConfirmedAt,
		&b.CompletedAt,
		&b.CancelledAt,
		&b.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	b.StartTime = model.TimeOfDay(startMinutes)
	b.EndTime = model.TimeOfDay(endMinutes)
	b.SessionType = model.SessionType(sessionType)
	b.MeetingFormat = model.MeetingFormat(meetingFormat)
	b.Status = model.BookingStatus(status)
	return &b, nil
}

func scanBookings(rows pgx.Rows) ([]*model.SessionBooking, error) {
	var bookings []*model.SessionBooking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, &model.PersistenceError{Op: "scan booking", Err: err}
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "iterate bookings", Err: err}
	}
	return bookings, nil
}
