package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/scamcheck/core/logger"
	"github.com/m3rciful/scamcheck/internal/models"
)

// ErrEmptyWord rejects banned-word updates without a word.
var ErrEmptyWord = errors.New("service: empty word")

// ChatsStore is the persistence surface for per-chat moderation config.
type ChatsStore interface {
	Get(ctx context.Context, chatID int64) (*models.ChatConfig, error)
	Save(ctx context.Context, cfg *models.ChatConfig) error
	ListAutoMessageChats(ctx context.Context) ([]models.ChatConfig, error)
}

// Chats manages group moderation settings: banned-word lists and the
// periodic auto message.
type Chats struct {
	store ChatsStore
}

func NewChats(store ChatsStore) *Chats {
	return &Chats{store: store}
}

// BannedWord returns the first configured word found in text, matched
// case-insensitively as a substring.
func (s *Chats) BannedWord(ctx context.Context, chatID int64, text string) (string, bool) {
	cfg, err := s.store.Get(ctx, chatID)
	if err != nil {
		logger.Error(ctx, "service.chats", "chat config load failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, w := range cfg.BannedWords {
		if w != "" && strings.Contains(lowered, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}

// BannedWords returns the configured word list for a chat.
func (s *Chats) BannedWords(ctx context.Context, chatID int64) ([]string, error) {
	cfg, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return cfg.BannedWords, nil
}

func (s *Chats) AddBannedWord(ctx context.Context, chatID int64, word string) error {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ErrEmptyWord
	}
	cfg, err := s.store.Get(ctx, chatID)
	if err != nil {
		return err
	}
	for _, w := range cfg.BannedWords {
		if w == word {
			return nil
		}
	}
	cfg.BannedWords = append(cfg.BannedWords, word)
	return s.store.Save(ctx, cfg)
}

func (s *Chats) RemoveBannedWord(ctx context.Context, chatID int64, word string) error {
	word = strings.ToLower(strings.TrimSpace(word))
	cfg, err := s.store.Get(ctx, chatID)
	if err != nil {
		return err
	}
	kept := cfg.BannedWords[:0]
	for _, w := range cfg.BannedWords {
		if w != word {
			kept = append(kept, w)
		}
	}
	cfg.BannedWords = kept
	return s.store.Save(ctx, cfg)
}

// SetAutoMessage stores the recurring message for a chat. An empty text
// disables it regardless of enabled.
func (s *Chats) SetAutoMessage(ctx context.Context, chatID int64, text string, enabled bool) error {
	cfg, err := s.store.Get(ctx, chatID)
	if err != nil {
		return err
	}
	cfg.AutoMessage = strings.TrimSpace(text)
	cfg.AutoMessageEnabled = enabled && cfg.AutoMessage != ""
	if err := s.store.Save(ctx, cfg); err != nil {
		return err
	}
	logger.Info(ctx, "service.chats", "auto message updated",
		slog.Int64("chat_id", chatID),
		slog.Bool("enabled", cfg.AutoMessageEnabled))
	return nil
}

// SetAutoMessageEnabled toggles the recurring message without changing
// its text. Enabling is a no-op while no text is stored.
func (s *Chats) SetAutoMessageEnabled(ctx context.Context, chatID int64, enabled bool) error {
	cfg, err := s.store.Get(ctx, chatID)
	if err != nil {
		return err
	}
	cfg.AutoMessageEnabled = enabled && cfg.AutoMessage != ""
	return s.store.Save(ctx, cfg)
}

// AutoMessageChats lists chats with the auto message enabled.
func (s *Chats) AutoMessageChats(ctx context.Context) ([]models.ChatConfig, error) {
	return s.store.ListAutoMessageChats(ctx)
}
