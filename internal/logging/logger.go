package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// #region logger-config
// Config selects level, format and the component attribute of a logger.
type Config struct {
	Level     string `json:"level" yaml:"level" toml:"level"`    // debug | info | warn | error
	Format    string `json:"format" yaml:"format" toml:"format"` // text | json
	Component string `json:"component" yaml:"component" toml:"component"`
	AddSource bool   `json:"add_source" yaml:"add_source" toml:"add_source"`
}

// DefaultConfig returns info-level text logging.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", Component: "coach"}
}

// #endregion logger-config

// #region logger
// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Validate rejects unknown levels and formats.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
		return nil
	}
	return fmt.Errorf("unknown log format %q", c.Format)
}

// New builds a logger writing to w.
func New(cfg Config, w io.Writer) (*slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.ToLower(cfg.Format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(h)
	if cfg.Component != "" {
		l = l.With("component", cfg.Component)
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// #endregion logger
