package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MailConfig holds the IMAP connection and mailbox layout.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	// Password falls back to the OS keyring when empty.
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	Mailbox          string `mapstructure:"mailbox" yaml:"mailbox"`
	ProcessedMailbox string `mapstructure:"processed_mailbox" yaml:"processed_mailbox"`
	FailuresMailbox  string `mapstructure:"failures_mailbox" yaml:"failures_mailbox"`

	// Timeout bounds a single provider pass.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// ConcurrentProviders runs provider passes in parallel, one IMAP session
	// each. Messages of one provider are always handled in order.
	ConcurrentProviders bool `mapstructure:"concurrent_providers" yaml:"concurrent_providers"`
}

// ProvidersConfig selects and tunes the provider parsers.
type ProvidersConfig struct {
	// Enabled lists provider names to poll. Empty means all known providers.
	Enabled []string `mapstructure:"enabled" yaml:"enabled"`

	// TZPrefix is prepended to bare zone names such as "Eastern".
	TZPrefix string `mapstructure:"tz_prefix" yaml:"tz_prefix"`

	// Escalation maps provider name to an escalation contact.
	Escalation map[string]string `mapstructure:"escalation" yaml:"escalation"`
}

// LifecycleConfig drives the periodic cycle and the promotion sweeps.
type LifecycleConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	Lookahead     time.Duration `mapstructure:"lookahead" yaml:"lookahead"`
}

// HooksConfig names the hooks fired on each transition.
type HooksConfig struct {
	Started []string `mapstructure:"started" yaml:"started"`
	Ended   []string `mapstructure:"ended" yaml:"ended"`
}

// SlackConfig configures the Slack incoming-webhook hook.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
	Username   string `mapstructure:"username" yaml:"username"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database   DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Mail       MailConfig      `mapstructure:"mail" yaml:"mail"`
	Providers  ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Lifecycle  LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`
	Hooks      HooksConfig     `mapstructure:"hooks" yaml:"hooks"`
	Slack      SlackConfig     `mapstructure:"slack" yaml:"slack"`
	JanitorURL string          `mapstructure:"janitor_url" yaml:"janitor_url"`
	Metrics    MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Log        LogConfig       `mapstructure:"log" yaml:"log"`
}

// Validate checks the settings every command relies on.
func (c *AppConfig) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Lifecycle.CheckInterval <= 0 {
		return errors.New("lifecycle.check_interval must be positive")
	}
	if c.Lifecycle.Lookahead < 0 {
		return errors.New("lifecycle.lookahead must not be negative")
	}
	if c.Mail.Timeout <= 0 {
		return errors.New("mail.timeout must be positive")
	}
	return nil
}

// ValidateMail checks the settings needed to talk to the mail server.
func (c *AppConfig) ValidateMail() error {
	if c.Mail.Host == "" {
		return errors.New("mail.host is required")
	}
	if c.Mail.Username == "" {
		return errors.New("mail.username is required")
	}
	if c.Mail.Port <= 0 {
		return errors.New("mail.port must be positive")
	}
	return nil
}

// DefaultConfigPath returns ~/.config/janitor/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "janitor", "config.yaml")
}

// DefaultDatabasePath returns ~/.local/share/janitor/janitor.db.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "janitor.db")
	}
	return filepath.Join(home, ".local", "share", "janitor", "janitor.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 993)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.tls", true)
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("mail.processed_mailbox", "processed")
	v.SetDefault("mail.failures_mailbox", "failures")
	v.SetDefault("mail.timeout", 2*time.Minute)
	v.SetDefault("mail.concurrent_providers", false)

	v.SetDefault("providers.enabled", []string{})
	v.SetDefault("providers.tz_prefix", "")
	v.SetDefault("providers.escalation", map[string]string{})

	v.SetDefault("lifecycle.check_interval", 10*time.Minute)
	v.SetDefault("lifecycle.lookahead", 5*time.Minute)

	v.SetDefault("hooks.started", []string{"slack"})
	v.SetDefault("hooks.ended", []string{"slack"})

	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("slack.channel", "")
	v.SetDefault("slack.username", "janitor")

	v.SetDefault("janitor_url", "")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and JANITOR_* environment
// variables still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("janitor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
