// Package config handles YAML and TOML configuration loading with environment
// variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// The deployment variables DATABASE_URL (or AZURE_POSTGRESQL_CONNECTIONSTRING),
// DB_MAX_RETRIES, DB_RETRY_DELAY, PORT and APP_ENV override file values.
package config
