package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	id, ok := parseTarget("@scammer")
	require.True(t, ok)
	assert.Equal(t, "scammer", id.Username)

	id, ok = parseTarget("123456")
	require.True(t, ok)
	assert.Equal(t, int64(123456), id.UserID)

	_, ok = parseTarget("not a handle")
	assert.False(t, ok)
	_, ok = parseTarget("@")
	assert.False(t, ok)
	_, ok = parseTarget("-5")
	assert.False(t, ok)
}

func TestWithAt(t *testing.T) {
	assert.Equal(t, "@seller", withAt("seller"))
	assert.Equal(t, "@seller", withAt("@seller"))
	assert.Equal(t, "123", withAt("123"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "они обманы…", truncate("они обманывают людей", 11))
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
telegram:
  token: "123:abc"
database:
  host: localhost
  port: "5432"
  user: bot
  password: secret
  name: scamcheck
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "locales", cfg.Locale.Dir)
	assert.Equal(t, "en", cfg.Locale.DefaultLang)
	assert.Equal(t, "en", cfg.Channel.Lang)
	assert.NotZero(t, cfg.Moderation.AutoMessageInterval)
	assert.NotEmpty(t, cfg.PriceWatch.BaseURL)
	assert.Equal(t, "123:abc", cfg.Core.Telegram.Token)
}

func TestLoadConfigRejectsMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
telegram:
  token: "123:abc"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
