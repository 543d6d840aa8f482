package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scamcheck/internal/models"
)

// GuarantorsRepo persists the trusted-vendor allowlist.
type GuarantorsRepo struct {
	db *sqlx.DB
}

// Add inserts an allowlist entry; re-adding an existing username updates
// its title.
func (r *GuarantorsRepo) Add(ctx context.Context, username, title string, addedBy int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guarantors (username, title, added_by)
		VALUES (LOWER($1), $2, $3)
		ON CONFLICT (username) DO UPDATE SET title = EXCLUDED.title`,
		username, title, addedBy,
	)
	if err != nil {
		return fmt.Errorf("guarantors add %s: %w", username, err)
	}
	return nil
}

// Remove deletes an allowlist entry by username.
func (r *GuarantorsRepo) Remove(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM guarantors WHERE username = LOWER($1)`, username)
	if err != nil {
		return fmt.Errorf("guarantors remove %s: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByUsername fetches an entry by username, case-insensitively.
func (r *GuarantorsRepo) GetByUsername(ctx context.Context, username string) (*models.Guarantor, error) {
	var g models.Guarantor
	err := r.db.GetContext(ctx, &g, `
		SELECT * FROM guarantors WHERE username = LOWER($1)`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("guarantors get %s: %w", username, err)
	}
	return &g, nil
}

// List returns the allowlist ordered by username.
func (r *GuarantorsRepo) List(ctx context.Context) ([]models.Guarantor, error) {
	var out []models.Guarantor
	err := r.db.SelectContext(ctx, &out, `SELECT * FROM guarantors ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("guarantors list: %w", err)
	}
	return out, nil
}
