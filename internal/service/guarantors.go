package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/scamcheck/core/logger"
	"github.com/m3rciful/scamcheck/internal/models"
	"github.com/m3rciful/scamcheck/internal/storage"
)

// ErrEmptyUsername rejects allowlist operations without a username.
var ErrEmptyUsername = errors.New("service: empty username")

// GuarantorsStore is the persistence surface the allowlist service needs.
type GuarantorsStore interface {
	Add(ctx context.Context, username, title string, addedBy int64) error
	Remove(ctx context.Context, username string) error
	GetByUsername(ctx context.Context, username string) (*models.Guarantor, error)
	List(ctx context.Context) ([]models.Guarantor, error)
}

// Guarantors maintains the verified-guarantor allowlist.
type Guarantors struct {
	store GuarantorsStore
}

func NewGuarantors(store GuarantorsStore) *Guarantors {
	return &Guarantors{store: store}
}

// NormalizeUsername strips a leading @ and lowercases so lookups are
// insensitive to how the handle was typed.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

func (s *Guarantors) Add(ctx context.Context, username, title string, addedBy int64) error {
	username = NormalizeUsername(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if err := s.store.Add(ctx, username, title, addedBy); err != nil {
		return err
	}
	logger.Info(ctx, "service.guarantors", "guarantor added",
		slog.String("username", username),
		slog.Int64("user_id", addedBy))
	return nil
}

func (s *Guarantors) Remove(ctx context.Context, username string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if err := s.store.Remove(ctx, username); err != nil {
		return err
	}
	logger.Info(ctx, "service.guarantors", "guarantor removed", slog.String("username", username))
	return nil
}

// IsGuarantor reports whether the handle is on the allowlist.
func (s *Guarantors) IsGuarantor(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return false, nil
	}
	_, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Guarantors) List(ctx context.Context) ([]models.Guarantor, error) {
	return s.store.List(ctx)
}
