package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scamcheck/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ReportsRepo persists reports and their media attachments.
type ReportsRepo struct {
	db *sqlx.DB
}

// Create inserts the report and its media rows in one transaction and
// returns the new report id.
func (r *ReportsRepo) Create(ctx context.Context, rep *models.Report, media []models.ReportMedia) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("reports create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO reports (kind, target_username, target_telegram_id, description, status, reporter_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rep.Kind, rep.TargetUsername, rep.TargetTelegramID, rep.Description, rep.Status, rep.ReporterID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reports create: insert report: %w", err)
	}

	for i, m := range media {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO report_media (report_id, kind, file_id, position)
			VALUES ($1, $2, $3, $4)`,
			id, m.Kind, m.FileID, i,
		); err != nil {
			return 0, fmt.Errorf("reports create: insert media %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("reports create: commit: %w", err)
	}
	return id, nil
}

// GetByID fetches a single report.
func (r *ReportsRepo) GetByID(ctx context.Context, id int64) (*models.Report, error) {
	var rep models.Report
	err := r.db.GetContext(ctx, &rep, `SELECT * FROM reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reports get %d: %w", id, err)
	}
	return &rep, nil
}

// UpdateStatus moves a report to a new review status.
func (r *ReportsRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reports SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("reports update status %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending returns scam reports waiting for moderator review, oldest
// first.
func (r *ReportsRepo) ListPending(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Report
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM reports
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`,
		models.ReportStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reports list pending: %w", err)
	}
	return out, nil
}

// CountByTarget counts reports of the given kind and status matching
// either the username (case-insensitive) or the telegram id.
func (r *ReportsRepo) CountByTarget(ctx context.Context, username string, telegramID int64, status string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM reports
		WHERE kind = $1 AND status = $2
		  AND (
			($3 <> '' AND LOWER(target_username) = LOWER($3))
			OR ($4 <> 0 AND target_telegram_id = $4)
		  )`,
		models.ReportKindReport, status, username, telegramID,
	)
	if err != nil {
		return 0, fmt.Errorf("reports count by target: %w", err)
	}
	return n, nil
}

// MediaByReport returns a report's attachments ordered by position.
func (r *ReportsRepo) MediaByReport(ctx context.Context, reportID int64) ([]models.ReportMedia, error) {
	var out []models.ReportMedia
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM report_media WHERE report_id = $1 ORDER BY position ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("report media %d: %w", reportID, err)
	}
	return out, nil
}
