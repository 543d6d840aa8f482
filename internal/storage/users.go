package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scamcheck/internal/models"
)

// UsersRepo persists known bot users.
type UsersRepo struct {
	db *sqlx.DB
}

// Upsert inserts the user or refreshes username and language on conflict,
// returning the stored row.
func (r *UsersRepo) Upsert(ctx context.Context, telegramID int64, username, lang string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `
		INSERT INTO users (telegram_id, username, lang)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username,
		    lang = EXCLUDED.lang
		RETURNING *`,
		telegramID, username, lang,
	)
	if err != nil {
		return nil, fmt.Errorf("users upsert %d: %w", telegramID, err)
	}
	return &u, nil
}

// GetByTelegramID fetches a user by their Telegram id.
func (r *UsersRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users get %d: %w", telegramID, err)
	}
	return &u, nil
}

// SetBanned toggles the ban flag.
func (r *UsersRepo) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_banned = $2 WHERE telegram_id = $1`, telegramID, banned)
	if err != nil {
		return fmt.Errorf("users set banned %d: %w", telegramID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
