package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/king0079z/Tender-Tracker-60/internal/connection"
	"github.com/king0079z/Tender-Tracker-60/internal/database"
	"github.com/king0079z/Tender-Tracker-60/internal/schema"
	"github.com/king0079z/Tender-Tracker-60/internal/server"
	"github.com/king0079z/Tender-Tracker-60/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API that owns the database connection",
	Long: `Run the tracker HTTP API.

The server starts listening before the database is reachable, so health
probes answer 503 while the connection is being established. A failed
initial connection is retried on demand; a failed schema bootstrap is fatal.

Routes:
  GET  /api/health   health report
  POST /api/query    statement execution
  GET  /debug/stats  connection counters`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	logger.Info("starting tracker server",
		"version", version.Version,
		"commit", version.Commit,
		"mode", cfg.Server.Mode,
		"database", database.Redact(cfg.Database.ConnectionString),
	)

	mgr := connection.NewManager(managerConfig(cfg), database.NewDialer(cfg.Database), schema.New(logger), logger)
	defer mgr.Close()

	srvCfg := server.DefaultConfig()
	srvCfg.Development = cfg.Server.Development()
	srvCfg.StaticDir = cfg.Server.StaticDir
	srvCfg.RequestTimeout = cfg.Server.RequestTimeout

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.New(srvCfg, mgr, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := mgr.Start(gctx)
		var bootErr *connection.BootstrapError
		switch {
		case errors.As(err, &bootErr):
			return err
		case err != nil && gctx.Err() == nil:
			logger.Error("initial database connection failed, will retry on demand", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if closeErr := mgr.Close(); closeErr != nil {
		logger.Warn("failed to close database connection", "error", closeErr)
	}
	logger.Info("tracker server stopped")
	return err
}
