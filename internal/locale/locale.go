// Package locale resolves message keys to user-facing text. Bundles are
// flat key/value YAML files, one per language, loaded once at start.
// Resolution never fails: an unknown key falls back to the default
// language and finally to the key itself.
package locale

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bundle holds loaded translations for all languages.
type Bundle struct {
	defaultLang string
	messages    map[string]map[string]string
}

// Load reads every *.yml / *.yaml file in dir; the file name (without
// extension) is the language tag.
func Load(dir, defaultLang string) (*Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("locale: read dir %s: %w", dir, err)
	}

	b := &Bundle{
		defaultLang: defaultLang,
		messages:    make(map[string]map[string]string),
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		lang := strings.TrimSuffix(name, ext)
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("locale: read %s: %w", name, err)
		}
		msgs := make(map[string]string)
		if err := yaml.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("locale: parse %s: %w", name, err)
		}
		b.messages[lang] = msgs
	}

	if len(b.messages) == 0 {
		return nil, fmt.Errorf("locale: no bundles found in %s", dir)
	}
	if _, ok := b.messages[defaultLang]; !ok {
		return nil, fmt.Errorf("locale: default language %q has no bundle", defaultLang)
	}
	return b, nil
}

// Resolve returns the text for key in lang, falling back to the default
// language and then to the key itself. It never fails.
func (b *Bundle) Resolve(key, lang string) string {
	if msgs, ok := b.messages[lang]; ok {
		if text, ok := msgs[key]; ok {
			return text
		}
	}
	if lang != b.defaultLang {
		if text, ok := b.messages[b.defaultLang][key]; ok {
			return text
		}
	}
	return key
}

// Languages lists the loaded language tags in sorted order.
func (b *Bundle) Languages() []string {
	langs := make([]string, 0, len(b.messages))
	for lang := range b.messages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// DefaultLang returns the configured fallback language tag.
func (b *Bundle) DefaultLang() string { return b.defaultLang }
