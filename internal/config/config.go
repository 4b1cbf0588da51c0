package config

import "time"

// Config is the root configuration shared by every tracker subcommand.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Monitor  MonitorConfig  `yaml:"monitor" toml:"monitor"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	Port            int           `yaml:"port" toml:"port"`
	Mode            string        `yaml:"mode" toml:"mode"`             // "production" or "development"
	StaticDir       string        `yaml:"static_dir" toml:"static_dir"` // SPA build output, empty disables static serving
	RequestTimeout  time.Duration `yaml:"request_timeout" toml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// Development reports whether the server runs in development mode.
func (s ServerConfig) Development() bool {
	return s.Mode == ModeDevelopment
}

// DatabaseConfig holds the connection and establishment settings.
type DatabaseConfig struct {
	ConnectionString string        `yaml:"connection_string" toml:"connection_string"`
	MaxConns         int           `yaml:"max_conns" toml:"max_conns"`
	MinConns         int           `yaml:"min_conns" toml:"min_conns"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" toml:"connect_timeout"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout" toml:"probe_timeout"`
	MaxAttempts      int           `yaml:"max_attempts" toml:"max_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay" toml:"retry_delay"`
	Bootstrap        *bool         `yaml:"bootstrap" toml:"bootstrap"` // nil means enabled
}

// BootstrapEnabled reports whether the one-time schema bootstrap should run.
func (d DatabaseConfig) BootstrapEnabled() bool {
	return d.Bootstrap == nil || *d.Bootstrap
}

// MonitorConfig holds client-side connection monitor settings.
type MonitorConfig struct {
	ServerURL      string        `yaml:"server_url" toml:"server_url"`
	PollInterval   time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	PollThrottle   time.Duration `yaml:"poll_throttle" toml:"poll_throttle"`
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`
	Backoff        BackoffConfig `yaml:"backoff" toml:"backoff"`
	WatchNetwork   bool          `yaml:"watch_network" toml:"watch_network"`
	RelayAddr      string        `yaml:"relay_addr" toml:"relay_addr"` // e.g. ":8090", empty disables the websocket relay
}

// BackoffConfig holds the retry policy for failed client query calls.
type BackoffConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay" toml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier" toml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay" toml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts" toml:"max_attempts"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}
