// Package service holds the domain services between the Telegram surface
// and the storage layer: user accounts, report lifecycle, the guarantor
// allowlist, per-chat moderation config, and channel publication.
package service

import (
	"context"
	"log/slog"

	"github.com/m3rciful/scamcheck/core/logger"
	"github.com/m3rciful/scamcheck/internal/models"
)

// UsersStore is the persistence surface the user service needs.
type UsersStore interface {
	Upsert(ctx context.Context, telegramID int64, username, lang string) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
}

// Users manages bot user accounts.
type Users struct {
	store UsersStore
}

func NewUsers(store UsersStore) *Users {
	return &Users{store: store}
}

// Ensure upserts the user record from the incoming update so every
// interaction keeps username and language current.
func (s *Users) Ensure(ctx context.Context, telegramID int64, username, lang string) (*models.User, error) {
	u, err := s.store.Upsert(ctx, telegramID, username, lang)
	if err != nil {
		logger.Error(ctx, "service.users", "user upsert failed",
			slog.Int64("user_id", telegramID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		return nil, err
	}
	return u, nil
}

// GetUserByTelegramID satisfies the generic helpers.CurrentUser contract.
func (s *Users) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.store.GetByTelegramID(ctx, telegramID)
}

func (s *Users) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	if err := s.store.SetBanned(ctx, telegramID, banned); err != nil {
		return err
	}
	logger.Info(ctx, "service.users", "user ban updated",
		slog.Int64("user_id", telegramID),
		slog.Bool("banned", banned))
	return nil
}
