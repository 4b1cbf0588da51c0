package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/king0079z/Tender-Tracker-60/internal/connection"
	"github.com/king0079z/Tender-Tracker-60/internal/database"
	"github.com/king0079z/Tender-Tracker-60/internal/schema"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the schema and seed the vendor list",
	Long: `Create any missing tables and seed the vendor list when the timelines
table is empty. Safe to run more than once.

The connection is retried twice, two seconds apart, before giving up.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	mcfg := managerConfig(cfg)
	mcfg.Retry = connection.FixedRetry(2, 2*time.Second)
	mcfg.Bootstrap = true

	mgr := connection.NewManager(mcfg, database.NewDialer(cfg.Database), schema.New(logger), logger)
	defer mgr.Close()

	if err := mgr.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), checkMark(true), "Database bootstrapped")
	return nil
}
