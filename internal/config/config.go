package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultTZOffsetHours = 5.5
	DefaultRetentionDays = 14
	DefaultBufSize       = 100
	DefaultWebUIPort     = 18890
)

type Config struct {
	Tracker  TrackerConfig  `json:"tracker"`
	Channels ChannelsConfig `json:"channels"`
	Report   ReportConfig   `json:"report"`
}

type TrackerConfig struct {
	DBPath         string  `json:"dbPath,omitempty"`
	SeedPath       string  `json:"seedPath,omitempty"`
	TZOffsetHours  float64 `json:"tzOffsetHours"`
	RetentionDays  int     `json:"retentionDays"`
	AutomationOnly bool    `json:"automationOnly"` // count only bot/webhook messages
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WebUI    WebUIConfig    `json:"webui"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebUIConfig struct {
	Enabled   bool     `json:"enabled"`
	Port      int      `json:"port,omitempty"`
	AllowFrom []string `json:"allowFrom"`
}

// ReportConfig names the chat that receives the daily rollover report.
type ReportConfig struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chatId"`
}

func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			TZOffsetHours: DefaultTZOffsetHours,
			RetentionDays: DefaultRetentionDays,
		},
		Channels: ChannelsConfig{
			WebUI: WebUIConfig{Port: DefaultWebUIPort},
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".eggwatch")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if token := os.Getenv("EGGWATCH_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if dbPath := os.Getenv("EGGWATCH_DB_PATH"); dbPath != "" {
		cfg.Tracker.DBPath = dbPath
	}
	if offset := os.Getenv("EGGWATCH_TZ_OFFSET_HOURS"); offset != "" {
		if parsed, err := strconv.ParseFloat(offset, 64); err == nil {
			cfg.Tracker.TZOffsetHours = parsed
		}
	}
	if days := os.Getenv("EGGWATCH_RETENTION_DAYS"); days != "" {
		if parsed, err := strconv.Atoi(days); err == nil && parsed > 0 {
			cfg.Tracker.RetentionDays = parsed
		}
	}
	if only := os.Getenv("EGGWATCH_AUTOMATION_ONLY"); only != "" {
		if parsed, err := strconv.ParseBool(only); err == nil {
			cfg.Tracker.AutomationOnly = parsed
		}
	}
	if chatID := os.Getenv("EGGWATCH_REPORT_CHAT_ID"); chatID != "" {
		cfg.Report.ChatID = chatID
	}

	if cfg.Tracker.DBPath == "" {
		cfg.Tracker.DBPath = filepath.Join(ConfigDir(), "data", "eggs.db")
	}
	if cfg.Tracker.SeedPath == "" {
		cfg.Tracker.SeedPath = filepath.Join(ConfigDir(), "patterns.yaml")
	}
	if cfg.Tracker.RetentionDays <= 0 {
		cfg.Tracker.RetentionDays = DefaultRetentionDays
	}
	if cfg.Channels.WebUI.Port == 0 {
		cfg.Channels.WebUI.Port = DefaultWebUIPort
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
