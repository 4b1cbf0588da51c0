package config

import "time"

// Server modes.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Default values for optional configuration fields.
const (
	DefaultPort            = 8080
	DefaultMode            = ModeProduction
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxConns        = 20
	DefaultMinConns        = 0
	DefaultConnectTimeout  = 30 * time.Second
	DefaultProbeTimeout    = 5 * time.Second
	DefaultMaxAttempts     = 5
	DefaultRetryDelay      = 5 * time.Second
	DefaultServerURL       = "http://localhost:8080"
	DefaultPollInterval    = 30 * time.Second
	DefaultPollThrottle    = 1 * time.Second
	DefaultClientTimeout   = 30 * time.Second
	DefaultBackoffBase     = 1 * time.Second
	DefaultBackoffFactor   = 2.0
	DefaultBackoffMax      = 10 * time.Second
	DefaultBackoffAttempts = 3
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Mode == "" {
		c.Server.Mode = DefaultMode
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Database defaults
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Database.ProbeTimeout == 0 {
		c.Database.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Database.MaxAttempts == 0 {
		c.Database.MaxAttempts = DefaultMaxAttempts
	}
	if c.Database.RetryDelay == 0 {
		c.Database.RetryDelay = DefaultRetryDelay
	}

	// Monitor defaults
	if c.Monitor.ServerURL == "" {
		c.Monitor.ServerURL = DefaultServerURL
	}
	if c.Monitor.PollInterval == 0 {
		c.Monitor.PollInterval = DefaultPollInterval
	}
	if c.Monitor.PollThrottle == 0 {
		c.Monitor.PollThrottle = DefaultPollThrottle
	}
	if c.Monitor.RequestTimeout == 0 {
		c.Monitor.RequestTimeout = DefaultClientTimeout
	}
	applyBackoffDefaults(&c.Monitor.Backoff)

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyBackoffDefaults(b *BackoffConfig) {
	if b.BaseDelay == 0 {
		b.BaseDelay = DefaultBackoffBase
	}
	if b.Multiplier == 0 {
		b.Multiplier = DefaultBackoffFactor
	}
	if b.MaxDelay == 0 {
		b.MaxDelay = DefaultBackoffMax
	}
	if b.MaxAttempts == 0 {
		b.MaxAttempts = DefaultBackoffAttempts
	}
}
