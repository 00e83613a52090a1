// ABOUTME: Configuration loading and parsing for envision-bot
// ABOUTME: Supports TOML files with .env loading, environment variable expansion, and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults applied when a key is absent.
const (
	DefaultTypingDelay        = time.Second
	DefaultMessageDelay       = 1500 * time.Millisecond
	DefaultSessionIdleTimeout = 24 * time.Hour
	DefaultDedupeTTL          = 10 * time.Minute
	DefaultDedupeSize         = 10000
)

// Config represents the complete envision-bot configuration
type Config struct {
	Matrix   MatrixConfig   `toml:"matrix"`
	Bot      BotConfig      `toml:"bot"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// MatrixConfig holds the Matrix account the bot runs as
type MatrixConfig struct {
	Homeserver   string   `toml:"homeserver"`
	UserID       string   `toml:"user_id"`
	AccessToken  string   `toml:"access_token"`
	DeviceID     string   `toml:"device_id"`
	Username     string   `toml:"username"`
	Password     string   `toml:"password"`
	RecoveryKey  string   `toml:"recovery_key"`
	AutoJoin     bool     `toml:"auto_join"`
	AllowedUsers []string `toml:"allowed_users"`
}

// BotConfig holds conversation timing and content settings
type BotConfig struct {
	TypingDelay        time.Duration `toml:"-"`
	MessageDelay       time.Duration `toml:"-"`
	SessionIdleTimeout time.Duration `toml:"-"`
	DedupeTTL          time.Duration `toml:"-"`

	// Raw string values for TOML decoding
	TypingDelayRaw        string `toml:"typing_delay"`
	MessageDelayRaw       string `toml:"message_delay"`
	SessionIdleTimeoutRaw string `toml:"session_idle_timeout"`
	DedupeTTLRaw          string `toml:"dedupe_ttl"`

	DedupeSize int    `toml:"dedupe_size"`
	ScriptPath string `toml:"script_path"`
}

// DatabaseConfig holds the ticket ledger location. An empty path disables the ledger.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// UsesPassword reports whether the bot logs in with a password instead of a stored token.
func (m MatrixConfig) UsesPassword() bool {
	return m.AccessToken == ""
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file in the config's directory is loaded first without overriding
// variables already set. Environment variables in the format ${VAR_NAME} are
// expanded and duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(expandEnvVars(string(data)))
}

// Parse decodes already-expanded TOML content, applies defaults, and validates.
func Parse(content string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads KEY=value pairs from path when the file exists.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	u, err := url.Parse(c.Matrix.Homeserver)
	if err != nil {
		return fmt.Errorf("matrix.homeserver is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("matrix.homeserver must use http or https scheme")
	}

	if c.Matrix.UsesPassword() {
		if c.Matrix.Username == "" || c.Matrix.Password == "" {
			return fmt.Errorf("matrix.username and matrix.password are required when matrix.access_token is empty")
		}
	} else if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required with matrix.access_token")
	}

	if c.Bot.TypingDelay < 0 || c.Bot.MessageDelay < 0 {
		return fmt.Errorf("bot delays must not be negative")
	}
	if c.Bot.SessionIdleTimeout < 0 {
		return fmt.Errorf("bot.session_idle_timeout must not be negative")
	}
	if c.Bot.DedupeSize < 0 {
		return fmt.Errorf("bot.dedupe_size must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
		def  time.Duration
	}{
		{"typing_delay", cfg.Bot.TypingDelayRaw, &cfg.Bot.TypingDelay, DefaultTypingDelay},
		{"message_delay", cfg.Bot.MessageDelayRaw, &cfg.Bot.MessageDelay, DefaultMessageDelay},
		{"session_idle_timeout", cfg.Bot.SessionIdleTimeoutRaw, &cfg.Bot.SessionIdleTimeout, DefaultSessionIdleTimeout},
		{"dedupe_ttl", cfg.Bot.DedupeTTLRaw, &cfg.Bot.DedupeTTL, DefaultDedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			*f.dst = f.def
			continue
		}
		// A bare "0" is accepted by time.ParseDuration and disables the feature.
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.DedupeSize == 0 {
		cfg.Bot.DedupeSize = DefaultDedupeSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
