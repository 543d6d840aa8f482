// Package app assembles the scam-checker bot: configuration, service
// wiring, command handlers, and the Telegram run options.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/scamcheck/core/config"
	coredatabase "github.com/m3rciful/scamcheck/core/database"
)

// ChannelConfig points at the public channel where confirmed intake
// submissions and price alerts are posted.
type ChannelConfig struct {
	ChatID int64  `yaml:"chat_id" envconfig:"CHANNEL_CHAT_ID"`
	Lang   string `yaml:"lang" envconfig:"CHANNEL_LANG"`
}

// IntakeConfig tunes the report/appeal conversation flows.
type IntakeConfig struct {
	MinMedia        int           `yaml:"min_media" envconfig:"INTAKE_MIN_MEDIA"`
	MaxMedia        int           `yaml:"max_media" envconfig:"INTAKE_MAX_MEDIA"`
	MaxDescription  int           `yaml:"max_description" envconfig:"INTAKE_MAX_DESCRIPTION"`
	AlbumFlushDelay time.Duration `yaml:"album_flush_delay" envconfig:"INTAKE_ALBUM_FLUSH_DELAY"`
}

// LocaleConfig selects the message bundle directory and default language.
type LocaleConfig struct {
	Dir         string `yaml:"dir" envconfig:"LOCALE_DIR"`
	DefaultLang string `yaml:"default_lang" envconfig:"LOCALE_DEFAULT_LANG"`
}

// PriceWatchConfig tunes the spot price watcher. An empty symbol list
// disables it.
type PriceWatchConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"PRICEWATCH_BASE_URL"`
	Symbols      []string      `yaml:"symbols" envconfig:"PRICEWATCH_SYMBOLS"`
	Interval     time.Duration `yaml:"interval" envconfig:"PRICEWATCH_INTERVAL"`
	ThresholdPct float64       `yaml:"threshold_pct" envconfig:"PRICEWATCH_THRESHOLD_PCT"`
}

// ModerationConfig covers group moderation behaviour.
type ModerationConfig struct {
	AutoMessageInterval time.Duration `yaml:"auto_message_interval" envconfig:"AUTO_MESSAGE_INTERVAL"`
	SeedGuarantors      []string      `yaml:"seed_guarantors"`
}

// Config is the full application configuration: the shared core settings
// plus the scam-checker sections.
type Config struct {
	Core coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Channel    ChannelConfig       `yaml:"channel"`
	Intake     IntakeConfig        `yaml:"intake"`
	Locale     LocaleConfig        `yaml:"locale"`
	PriceWatch PriceWatchConfig    `yaml:"pricewatch"`
	Moderation ModerationConfig    `yaml:"moderation"`
}

// CoreConfig exposes the embedded core configuration for the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads the YAML file, applies environment overrides, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Locale.Dir == "" {
		cfg.Locale.Dir = "locales"
	}
	if cfg.Locale.DefaultLang == "" {
		cfg.Locale.DefaultLang = "en"
	}
	if cfg.Channel.Lang == "" {
		cfg.Channel.Lang = cfg.Locale.DefaultLang
	}
	if cfg.PriceWatch.BaseURL == "" {
		cfg.PriceWatch.BaseURL = "https://api.binance.com/api/v3"
	}
	if cfg.Moderation.AutoMessageInterval <= 0 {
		cfg.Moderation.AutoMessageInterval = 6 * time.Hour
	}
	return nil
}
