package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML or TOML config file, expands environment variables and
// applies environment overrides. An empty path yields a config built from
// the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))

		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if _, err := toml.Decode(expanded, &cfg); err != nil {
				return nil, fmt.Errorf("parse config toml: %w", err)
			}
		default:
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, fmt.Errorf("parse config yaml: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file values with the variables the deployment
// environment has always provided.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, key := range []string{"AZURE_POSTGRESQL_CONNECTIONSTRING", "DATABASE_URL"} {
		if v, ok := lookup(key); ok && v != "" {
			c.Database.ConnectionString = v
			break
		}
	}

	if v, ok := lookup("DB_MAX_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse DB_MAX_RETRIES: %w", err)
		}
		c.Database.MaxAttempts = n
	}

	// DB_RETRY_DELAY accepts a Go duration or a bare millisecond count.
	if v, ok := lookup("DB_RETRY_DELAY"); ok && v != "" {
		d, err := parseDelay(v)
		if err != nil {
			return fmt.Errorf("parse DB_RETRY_DELAY: %w", err)
		}
		c.Database.RetryDelay = d
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		c.Server.Port = n
	}

	if v, ok := lookup("APP_ENV"); ok && v != "" {
		c.Server.Mode = v
	}

	if v, ok := lookup("TRACKER_SERVER_URL"); ok && v != "" {
		c.Monitor.ServerURL = v
	}

	return nil
}

func parseDelay(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}
