// Package config holds the bridge configuration: a YAML file under the
// Claude home with environment-variable overrides for the values an
// operator most often sets per-shell (bot token, tmux session, port).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultTmuxSession    = "claude"
	DefaultPort           = 8080
	DefaultRecencyDays    = 30
	DefaultPollSeconds    = 5
	DefaultTypingSeconds  = 4
	DefaultSessionLimit   = 8
	DefaultLoopIterations = 5
)

// Config is the bridge configuration.
type Config struct {
	// BotToken authenticates against the Telegram Bot API. Usually set
	// via TELEGRAM_BOT_TOKEN rather than stored on disk.
	BotToken string `yaml:"bot_token,omitempty"`

	// TmuxSession is the tmux session name hosting Claude.
	TmuxSession string `yaml:"tmux_session"`

	// Port is the local webhook listen port.
	Port int `yaml:"port"`

	// WebhookURL is the public URL Telegram delivers updates to.
	// Empty means long polling.
	WebhookURL string `yaml:"webhook_url,omitempty"`

	// WebhookSecret validates webhook deliveries. Generated when a
	// webhook URL is configured without one.
	WebhookSecret string `yaml:"webhook_secret,omitempty"`

	// RecencyDays is the session validity window.
	RecencyDays int `yaml:"recency_days"`

	// PollSeconds is the reconciliation loop interval.
	PollSeconds int `yaml:"poll_seconds"`

	// TypingSeconds is the typing-indicator refresh interval.
	TypingSeconds int `yaml:"typing_seconds"`

	// SessionLimit caps picker keyboards.
	SessionLimit int `yaml:"session_limit"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// Load reads the config file at path, applies defaults and environment
// overrides. A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{
		TmuxSession:   DefaultTmuxSession,
		Port:          DefaultPort,
		RecencyDays:   DefaultRecencyDays,
		PollSeconds:   DefaultPollSeconds,
		TypingSeconds: DefaultTypingSeconds,
		SessionLimit:  DefaultSessionLimit,
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" {
		cfg.WebhookSecret = uuid.NewString()
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.BotToken = v
	}
	if v := os.Getenv("TMUX_SESSION"); v != "" {
		c.TmuxSession = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.WebhookURL = v
	}
}

// applyDefaults restores defaults for zero or nonsensical values, so a
// sparse config file works.
func (c *Config) applyDefaults() {
	if c.TmuxSession == "" {
		c.TmuxSession = DefaultTmuxSession
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.RecencyDays <= 0 {
		c.RecencyDays = DefaultRecencyDays
	}
	if c.PollSeconds <= 0 {
		c.PollSeconds = DefaultPollSeconds
	}
	if c.TypingSeconds <= 0 {
		c.TypingSeconds = DefaultTypingSeconds
	}
	if c.SessionLimit <= 0 {
		c.SessionLimit = DefaultSessionLimit
	}
}

// Validate checks the config is runnable for serving.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot token not set (set TELEGRAM_BOT_TOKEN or bot_token in the config file)")
	}
	return nil
}
