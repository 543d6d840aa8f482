package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scamcheck/internal/models"
)

type fakeChatsStore struct {
	configs map[int64]*models.ChatConfig
}

func newFakeChatsStore() *fakeChatsStore {
	return &fakeChatsStore{configs: map[int64]*models.ChatConfig{}}
}

func (f *fakeChatsStore) Get(_ context.Context, chatID int64) (*models.ChatConfig, error) {
	if cfg, ok := f.configs[chatID]; ok {
		cp := *cfg
		return &cp, nil
	}
	return &models.ChatConfig{ChatID: chatID}, nil
}

func (f *fakeChatsStore) Save(_ context.Context, cfg *models.ChatConfig) error {
	cp := *cfg
	f.configs[cfg.ChatID] = &cp
	return nil
}

func (f *fakeChatsStore) ListAutoMessageChats(_ context.Context) ([]models.ChatConfig, error) {
	var out []models.ChatConfig
	for _, cfg := range f.configs {
		if cfg.AutoMessageEnabled {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func TestBannedWordMatching(t *testing.T) {
	ctx := context.Background()
	svc := NewChats(newFakeChatsStore())

	require.NoError(t, svc.AddBannedWord(ctx, 10, "Casino"))
	require.NoError(t, svc.AddBannedWord(ctx, 10, "casino"))

	word, hit := svc.BannedWord(ctx, 10, "best CASINO bonuses here")
	assert.True(t, hit)
	assert.Equal(t, "casino", word)

	_, hit = svc.BannedWord(ctx, 10, "perfectly normal message")
	assert.False(t, hit)

	_, hit = svc.BannedWord(ctx, 99, "best casino bonuses")
	assert.False(t, hit)

	require.NoError(t, svc.RemoveBannedWord(ctx, 10, "CASINO"))
	_, hit = svc.BannedWord(ctx, 10, "best casino bonuses")
	assert.False(t, hit)
}

func TestAutoMessageLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeChatsStore()
	svc := NewChats(store)

	require.NoError(t, svc.SetAutoMessage(ctx, 20, "Check sellers via @scamcheck_bot", true))
	chats, err := svc.AutoMessageChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, int64(20), chats[0].ChatID)

	// Empty text disables regardless of the flag.
	require.NoError(t, svc.SetAutoMessage(ctx, 20, "   ", true))
	chats, err = svc.AutoMessageChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}
