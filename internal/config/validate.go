package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// ErrMissingConnectionString is returned when a command that talks to the
// database starts without a connection string.
var ErrMissingConnectionString = errors.New("database.connection_string is required (set DATABASE_URL or AZURE_POSTGRESQL_CONNECTIONSTRING)")

// Validate checks that values are within range. It does not require a
// connection string, since the client-only commands never open one; see
// RequireDatabase.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Mode != ModeProduction && c.Server.Mode != ModeDevelopment {
		return fmt.Errorf("server.mode must be %q or %q, got %q", ModeProduction, ModeDevelopment, c.Server.Mode)
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if _, err := url.ParseRequestURI(c.Monitor.ServerURL); err != nil {
		return fmt.Errorf("monitor.server_url is not a valid URL: %q", c.Monitor.ServerURL)
	}
	if c.Monitor.PollInterval <= 0 {
		return errors.New("monitor.poll_interval must be > 0")
	}
	if c.Monitor.PollThrottle < 0 {
		return errors.New("monitor.poll_throttle must be >= 0")
	}
	if err := c.Monitor.Backoff.validate("monitor.backoff"); err != nil {
		return err
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// RequireDatabase returns ErrMissingConnectionString when no connection
// string is configured.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.ConnectionString) == "" {
		return ErrMissingConnectionString
	}
	return nil
}

func (db *DatabaseConfig) validate(prefix string) error {
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	if db.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >= 0", prefix)
	}
	if db.RetryDelay < 0 {
		return fmt.Errorf("%s.retry_delay must be >= 0", prefix)
	}
	return nil
}

func (b *BackoffConfig) validate(prefix string) error {
	if b.BaseDelay <= 0 {
		return fmt.Errorf("%s.base_delay must be > 0", prefix)
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be >= 1, got %v", prefix, b.Multiplier)
	}
	if b.MaxDelay < b.BaseDelay {
		return fmt.Errorf("%s.max_delay (%s) cannot be less than base_delay (%s)", prefix, b.MaxDelay, b.BaseDelay)
	}
	if b.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >= 0", prefix)
	}
	return nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", level)
}
