package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillpath/scheduling/internal/model"
)

type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// ReplaceDay deletes and rewrites the rollup rows of one organization/date
// in one transaction, which is what makes recomputation idempotent.
func (r *AnalyticsRepository) ReplaceDay(ctx context.Context, orgID uuid.UUID, date time.Time, rows []*model.SessionAnalytics) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &model.PersistenceError{Op: "begin analytics transaction", Err: err}
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM session_analytics
		WHERE organization_id = $1 AND session_date = $2
	`, orgID, date)
	if err != nil {
		return &model.PersistenceError{Op: "delete analytics rows", Err: err}
	}

	for _, row := range rows {
		_, err = tx.Exec(ctx, `
			INSERT INTO session_analytics (id, organization_id, consultant_id, session_date,
				total_sessions_scheduled, total_sessions_completed, total_sessions_no_show,
				total_sessions_cancelled, average_rating, total_hours_completed, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			row.ID, row.OrganizationID, row.ConsultantID, row.SessionDate,
			row.TotalSessionsScheduled, row.TotalSessionsCompleted, row.TotalSessionsNoShow,
			row.TotalSessionsCancelled, row.AverageRating, row.TotalHoursCompleted, row.ComputedAt,
		)
		if err != nil {
			return &model.PersistenceError{Op: "insert analytics row", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &model.PersistenceError{Op: "commit analytics", Err: err}
	}
	return nil
}

func (r *AnalyticsRepository) ListByConsultant(ctx context.Context, orgID, consultantID uuid.UUID, from, to *time.Time) ([]*model.SessionAnalytics, error) {
	where := `WHERE organization_id = $1 AND consultant_id = $2`
	args := []any{orgID, consultantID}

	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND session_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND session_date <= $%d", len(args))
	}

	query := `
		SELECT id, organization_id, consultant_id, session_date,
			total_sessions_scheduled, total_sessions_completed, total_sessions_no_show,
			total_sessions_cancelled, average_rating, total_hours_completed, computed_at
		FROM session_analytics ` + where + `
		ORDER BY session_date
	`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list analytics", Err: err}
	}
	defer rows.Close()

	var result []*model.SessionAnalytics
	for rows.Next() {
		var row model.SessionAnalytics
		err := rows.Scan(
			&row.ID,
			&row.OrganizationID,
			&row.ConsultantID,
			&row.SessionDate,
			&row.TotalSessionsScheduled,
			&row.TotalSessionsCompleted,
			&row.TotalSessionsNoShow,
			&row.TotalSessionsCancelled,
			&row.AverageRating,
			&row.TotalHoursCompleted,
			&row.ComputedAt,
		)
		if err != nil {
			return nil, &model.PersistenceError{Op: "scan analytics row", Err: err}
		}
		result = append(result, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "list analytics", Err: err}
	}
	return result, nil
}
