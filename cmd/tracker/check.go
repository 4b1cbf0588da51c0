package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/king0079z/Tender-Tracker-60/internal/config"
	"github.com/king0079z/Tender-Tracker-60/internal/database"
)

// versioner is implemented by the concrete database connections.
type versioner interface {
	Version(ctx context.Context) (string, error)
}

var errCheckFailed = errors.New("database check failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Diagnose the database connection",
	Long: `Run a step-by-step database connection check:

  1. Environment: which settings are in effect
  2. DNS resolution of the database host
  3. Connect and run SELECT version()

Timeouts print the usual causes and what to try next.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return runChecks(ctx, cmd.OutOrStdout(), cfg, net.DefaultResolver)
}

// runChecks prints each step. DNS failure is reported but does not stop the
// connect step, which gives the more useful error.
func runChecks(ctx context.Context, out io.Writer, cfg *config.Config, resolver *net.Resolver) error {
	connStr := cfg.Database.ConnectionString

	fmt.Fprintln(out, styleBold.Render("Environment"))
	fmt.Fprintf(out, "  mode:              %s\n", cfg.Server.Mode)
	fmt.Fprintf(out, "  connection string: %s %s\n", checkMark(connStr != ""), database.Redact(connStr))
	fmt.Fprintf(out, "  max attempts:      %d\n", cfg.Database.MaxAttempts)
	fmt.Fprintf(out, "  retry delay:       %s\n", cfg.Database.RetryDelay)
	fmt.Fprintln(out)

	if err := cfg.RequireDatabase(); err != nil {
		fmt.Fprintln(out, checkMark(false), err)
		return errCheckFailed
	}

	fmt.Fprintln(out, styleBold.Render("DNS resolution"))
	if host := database.Host(connStr); host == "" {
		fmt.Fprintln(out, "  "+styleDim.Render("skipped (local database)"))
	} else if addrs, err := resolver.LookupHost(ctx, host); err != nil {
		fmt.Fprintf(out, "  %s %s: %v\n", checkMark(false), host, err)
	} else {
		fmt.Fprintf(out, "  %s %s -> %s\n", checkMark(true), host, strings.Join(addrs, ", "))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleBold.Render("Database connection"))
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	conn, err := database.NewDialer(cfg.Database)(dialCtx)
	if err != nil {
		fmt.Fprintf(out, "  %s connect: %v\n", checkMark(false), err)
		if code := database.ErrorCode(err); code != "" {
			fmt.Fprintf(out, "  error code: %s\n", code)
		}
		printHints(out, err)
		return errCheckFailed
	}
	defer conn.Close()
	fmt.Fprintf(out, "  %s connected (%s)\n", checkMark(true), conn.Dialect())

	if v, ok := conn.(versioner); ok {
		ver, err := v.Version(dialCtx)
		if err != nil {
			fmt.Fprintf(out, "  %s version query: %v\n", checkMark(false), err)
			return errCheckFailed
		}
		fmt.Fprintf(out, "  %s %s\n", checkMark(true), ver)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, styleOK.Render("All checks passed."))
	return nil
}

// hints returns troubleshooting steps for a failed connect, or nil.
func hints(err error) []string {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return []string{
			"Verify your IP address is allowed by the database server's firewall rules",
			"Check that the database server is running and accepting connections",
			"Check the network path between this host and the server",
			"Verify the connection string is correct",
		}
	case strings.Contains(msg, "password authentication failed"):
		return []string{"Verify the user name and password in the connection string"}
	case strings.Contains(msg, "no such host"):
		return []string{"Check the host name in the connection string"}
	case strings.Contains(msg, "connection refused"):
		return []string{
			"Check that the database server is listening on the configured port",
			"Check that the port is not blocked by a local firewall",
		}
	}
	return nil
}

func printHints(out io.Writer, err error) {
	h := hints(err)
	if len(h) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, styleWarn.Render("Suggested actions:"))
	for i, s := range h {
		fmt.Fprintf(out, "  %d. %s\n", i+1, s)
	}
}
