// Package config loads the service configuration from a YAML file and
// builds the logger the rest of the process shares.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration.
type Config struct {
	// Listen is the HTTP/WebSocket listen address.
	Listen string `yaml:"listen"`

	// Database is the path to the SQLite archive. Empty disables the
	// archiver entirely; the engine runs in-memory only.
	Database string `yaml:"database"`

	// Archive controls the persistence pull loop.
	Archive ArchiveConfig `yaml:"archive"`

	// Log controls the process logger.
	Log LogConfig `yaml:"log"`
}

// ArchiveConfig controls the archiver pull loop.
type ArchiveConfig struct {
	// Interval between pulls.
	Interval time.Duration `yaml:"interval"`
}

// UnmarshalYAML accepts Go duration strings ("30s", "1m") for the interval,
// which yaml.v3 will not decode into a time.Duration on its own. An absent
// or empty interval keeps the value already in place (the default).
func (a *ArchiveConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval string `yaml:"interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval == "" {
		return nil
	}
	d, err := time.ParseDuration(raw.Interval)
	if err != nil {
		return fmt.Errorf("invalid archive interval %q: %w", raw.Interval, err)
	}
	a.Interval = d
	return nil
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:   ":8080",
		Database: "coedit.db",
		Archive:  ArchiveConfig{Interval: 5 * time.Second},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML config file, layering it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Archive.Interval <= 0 {
		return fmt.Errorf("archive interval must be positive, got %s", c.Archive.Interval)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Logger builds a slog.Logger per the Log section, writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
