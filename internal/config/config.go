package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config holds settings shared by every vault command.
// Command-line flags override these values.
type Config struct {
	// DB is the SQLite database path.
	DB string `env:"VAULT_DB" envDefault:"vault.db"`

	// Capacity is the default number of depositor entries a new vault
	// accepts. Zero means unbounded.
	Capacity int `env:"VAULT_CAPACITY" envDefault:"100"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"VAULT_LOG_LEVEL" envDefault:"info"`

	// LogFormat is text or json.
	LogFormat string `env:"VAULT_LOG_FORMAT" envDefault:"text"`
}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("VAULT_DB must not be empty")
	}
	if c.Capacity < 0 {
		return fmt.Errorf("VAULT_CAPACITY must be >= 0, got %d", c.Capacity)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if !isValidLogFormat(c.LogFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %v", c.LogFormat, ValidLogFormats)
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", name)
	}
	return level, nil
}

// NewLogger builds the process logger. format selects slog's text or JSON
// handler; output goes to w.
func NewLogger(w io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be one of %v", format, ValidLogFormats)
	}
}

func isValidLogFormat(format string) bool {
	for _, f := range ValidLogFormats {
		if f == format {
			return true
		}
	}
	return false
}
