package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scamcheck/internal/models"
)

// ChatsRepo persists per-chat moderation configuration.
type ChatsRepo struct {
	db *sqlx.DB
}

// Get fetches the chat config; a chat without a row gets an empty config.
func (r *ChatsRepo) Get(ctx context.Context, chatID int64) (*models.ChatConfig, error) {
	var cfg models.ChatConfig
	err := r.db.GetContext(ctx, &cfg, `SELECT * FROM chat_configs WHERE chat_id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ChatConfig{ChatID: chatID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chats get %d: %w", chatID, err)
	}
	return &cfg, nil
}

// Save upserts the full chat config row.
func (r *ChatsRepo) Save(ctx context.Context, cfg *models.ChatConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_configs (chat_id, banned_words, auto_message, auto_message_enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE
		SET banned_words = EXCLUDED.banned_words,
		    auto_message = EXCLUDED.auto_message,
		    auto_message_enabled = EXCLUDED.auto_message_enabled`,
		cfg.ChatID, cfg.BannedWords, cfg.AutoMessage, cfg.AutoMessageEnabled,
	)
	if err != nil {
		return fmt.Errorf("chats save %d: %w", cfg.ChatID, err)
	}
	return nil
}

// ListAutoMessageChats returns configs of chats with an enabled
// auto-message.
func (r *ChatsRepo) ListAutoMessageChats(ctx context.Context) ([]models.ChatConfig, error) {
	var out []models.ChatConfig
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM chat_configs
		WHERE auto_message_enabled AND auto_message <> ''`)
	if err != nil {
		return nil, fmt.Errorf("chats list auto-message: %w", err)
	}
	return out, nil
}
