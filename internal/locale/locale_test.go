package locale

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolveFallbackChain(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "en.yml", "greet: \"hello\"\nonly_en: \"english only\"\n")
	writeBundle(t, dir, "ru.yml", "greet: \"привет\"\n")

	b, err := Load(dir, "en")
	require.NoError(t, err)

	assert.Equal(t, "привет", b.Resolve("greet", "ru"))
	assert.Equal(t, "hello", b.Resolve("greet", "en"))
	assert.Equal(t, "english only", b.Resolve("only_en", "ru"), "missing key falls back to default language")
	assert.Equal(t, "hello", b.Resolve("greet", "de"), "unknown language falls back to default")
	assert.Equal(t, "no.such.key", b.Resolve("no.such.key", "ru"), "unresolved key resolves to itself")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), "en")
	assert.Error(t, err)

	dir := t.TempDir()
	writeBundle(t, dir, "ru.yml", "greet: \"привет\"\n")
	_, err = Load(dir, "en")
	assert.Error(t, err, "default language must have a bundle")
}

func TestLanguages(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "ru.yml", "a: \"b\"\n")
	writeBundle(t, dir, "en.yml", "a: \"b\"\n")
	writeBundle(t, dir, "notes.txt", "ignored")

	b, err := Load(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "ru"}, b.Languages())
	assert.Equal(t, "en", b.DefaultLang())
}

func TestShippedBundlesParity(t *testing.T) {
	b, err := Load(filepath.Join("..", "..", "locales"), "en")
	require.NoError(t, err)
	require.Contains(t, b.Languages(), "ru")

	// Every flow key present in English must exist in Russian so that
	// inline button labels match in both languages.
	for _, key := range []string{
		"btn.done", "btn.resend", "btn.cancel", "btn.confirm", "btn.restart",
		"report.ask_identity", "report.ask_media", "report.confirm_summary",
		"appeal.ask_identity", "appeal.ask_media", "appeal.confirm_summary",
	} {
		assert.NotEqual(t, key, b.Resolve(key, "en"), "missing en text for %s", key)
		assert.NotEqual(t, key, b.Resolve(key, "ru"), "missing ru text for %s", key)
	}
}
