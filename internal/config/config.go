package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/magiconair/properties"
)

// Telegram transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Telegram  TelegramConfig
	Relay     RelayConfig
	Bot       BotConfig
	Reporting ReportingConfig
	MongoDB   MongoDBConfig
	Sheets    SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// TelegramConfig contains credentials and options for the Telegram Bot API.
type TelegramConfig struct {
	Token         string
	BotName       string
	BaseURL       string
	Mode          string
	PollTimeout   time.Duration
	WebhookURL    string
	WebhookSecret string
}

// RelayConfig points at the backend relay controller.
type RelayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// BotConfig holds the conversation settings and the lookup sources.
type BotConfig struct {
	TargetKind              string
	Language                string
	TargetsFile             string
	AllowListFile           string
	AllowListFailClosed     bool
	AllowListReloadSchedule string
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
	AdminChatID  int64
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	pollTimeout, err := getenvDuration("TELEGRAM_POLL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	relayTimeout, err := getenvDuration("RELAY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	failClosed, err := getenvBool("ALLOWLIST_FAIL_CLOSED", false)
	if err != nil {
		return nil, err
	}
	adminChatID, err := getenvInt64("ADMIN_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Telegram: TelegramConfig{
			Token:         os.Getenv("TELEGRAM_BOT_TOKEN"),
			BotName:       os.Getenv("TELEGRAM_BOT_NAME"),
			BaseURL:       getenvWithDefault("TELEGRAM_BASE_URL", "https://api.telegram.org"),
			Mode:          strings.ToLower(getenvWithDefault("TELEGRAM_MODE", ModePolling)),
			PollTimeout:   pollTimeout,
			WebhookURL:    os.Getenv("TELEGRAM_WEBHOOK_URL"),
			WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		},
		Relay: RelayConfig{
			BaseURL: os.Getenv("RELAY_BASE_URL"),
			Timeout: relayTimeout,
		},
		Bot: BotConfig{
			TargetKind:              os.Getenv("TARGET_KIND"),
			Language:                strings.ToLower(getenvWithDefault("BOT_LANGUAGE", "ru")),
			TargetsFile:             getenvWithDefault("TARGETS_FILE", "floors.txt"),
			AllowListFile:           getenvWithDefault("ALLOWLIST_FILE", "ids.txt"),
			AllowListFailClosed:     failClosed,
			AllowListReloadSchedule: os.Getenv("ALLOWLIST_RELOAD_SCHEDULE"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Europe/Moscow"),
			AdminChatID:  adminChatID,
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "relaybot"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
	}

	if err := cfg.applyLegacyFile(getenvWithDefault("BOT_CONFIG_FILE", "bot-config.txt")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyLegacyFile fills bot settings not provided by the environment from a
// bot-config.txt style properties file (bot.name, bot.token, bot.object-name).
func (c *Config) applyLegacyFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat bot config %s: %w", path, err)
	}

	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return fmt.Errorf("failed loading bot config %s: %w", path, err)
	}

	if c.Telegram.BotName == "" {
		c.Telegram.BotName = strings.TrimSpace(props.GetString("bot.name", ""))
	}
	if c.Telegram.Token == "" {
		c.Telegram.Token = strings.TrimSpace(props.GetString("bot.token", ""))
	}
	if c.Bot.TargetKind == "" {
		c.Bot.TargetKind = strings.TrimSpace(props.GetString("bot.object-name", ""))
	}
	return nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN must be provided")
	}
	if c.Telegram.BaseURL == "" {
		return errors.New("TELEGRAM_BASE_URL must not be empty")
	}

	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return errors.New("TELEGRAM_WEBHOOK_URL must be provided in webhook mode")
		}
	default:
		return fmt.Errorf("unsupported TELEGRAM_MODE %q", c.Telegram.Mode)
	}

	if c.Relay.BaseURL == "" {
		return errors.New("RELAY_BASE_URL must be provided")
	}
	if c.Relay.Timeout <= 0 {
		return errors.New("RELAY_TIMEOUT must be positive")
	}

	switch c.Bot.Language {
	case "ru", "en":
	default:
		return fmt.Errorf("unsupported BOT_LANGUAGE %q", c.Bot.Language)
	}

	if c.Bot.AllowListFile == "" {
		return errors.New("ALLOWLIST_FILE must not be empty")
	}

	if c.Reporting.AdminChatID != 0 && c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided when ADMIN_CHAT_ID is set")
	}
	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getenvInt64(key string, fallback int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
