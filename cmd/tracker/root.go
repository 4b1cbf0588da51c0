package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/king0079z/Tender-Tracker-60/internal/config"
	"github.com/king0079z/Tender-Tracker-60/internal/connection"
	"github.com/king0079z/Tender-Tracker-60/internal/monitor"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Tender Tracker backend and connection tools",
	Long: `Tender Tracker keeps the vendor timeline UI connected to its PostgreSQL
database.

The serve command runs the HTTP API that owns the database connection. The
monitor, query and check commands exercise that connection from the client
side.

Configuration is read from --config (YAML or TOML) and overridden by
DATABASE_URL, AZURE_POSTGRESQL_CONNECTIONSTRING, DB_MAX_RETRIES,
DB_RETRY_DELAY, PORT and APP_ENV.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(serveCmd, monitorCmd, queryCmd, bootstrapCmd, checkCmd, versionCmd)
}

func execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("Error:"), err)
		return 1
	}
	return 0
}

// setup loads and validates configuration and installs the default logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func managerConfig(cfg *config.Config) connection.ManagerConfig {
	return connection.ManagerConfig{
		Retry:        connection.FixedRetry(cfg.Database.MaxAttempts, cfg.Database.RetryDelay),
		ProbeTimeout: cfg.Database.ProbeTimeout,
		Bootstrap:    cfg.Database.BootstrapEnabled(),
		Mode:         cfg.Server.Mode,
		HasConnStr:   cfg.Database.ConnectionString != "",
	}
}

func monitorConfig(cfg *config.Config) monitor.Config {
	b := cfg.Monitor.Backoff
	return monitor.Config{
		PollInterval: cfg.Monitor.PollInterval,
		PollThrottle: cfg.Monitor.PollThrottle,
		ProbeTimeout: cfg.Monitor.RequestTimeout,
		Backoff:      connection.ExponentialBackoff(b.MaxAttempts, b.BaseDelay, b.Multiplier, b.MaxDelay),
	}
}

// ignoreCanceled drops the error a clean signal shutdown produces.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
