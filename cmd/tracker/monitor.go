package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/king0079z/Tender-Tracker-60/internal/api"
	"github.com/king0079z/Tender-Tracker-60/internal/monitor"
	"github.com/king0079z/Tender-Tracker-60/internal/netwatch"
	"github.com/king0079z/Tender-Tracker-60/internal/relay"
)

var (
	monitorOnce         bool
	monitorRelayAddr    string
	monitorWatchNetwork bool
)

// errDisconnected makes "monitor --once" exit non-zero.
var errDisconnected = errors.New("server not connected")

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch connectivity to the tracker server",
	Long: `Poll the tracker server's health endpoint and print a status line whenever
connectivity changes.

With --relay the status is also pushed to websocket clients at /ws on the
given address. With --watch-network the host's interfaces are watched and
a probe is sent as soon as the network returns.

Use --once for a single unthrottled probe; the exit code is 1 when the
server is not connected.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "probe once and exit")
	monitorCmd.Flags().StringVar(&monitorRelayAddr, "relay", "", "websocket relay listen address (overrides monitor.relay_addr)")
	monitorCmd.Flags().BoolVar(&monitorWatchNetwork, "watch-network", false, "watch host network interfaces (overrides monitor.watch_network)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if monitorRelayAddr != "" {
		cfg.Monitor.RelayAddr = monitorRelayAddr
	}
	if monitorWatchNetwork {
		cfg.Monitor.WatchNetwork = true
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	client := api.NewClient(cfg.Monitor.ServerURL,
		api.WithTimeout(cfg.Monitor.RequestTimeout),
		api.WithLogger(logger),
	)
	mon := monitor.New(monitorConfig(cfg), client, logger)

	if monitorOnce {
		defer mon.Stop(context.Background())
		connected, report, err := mon.TestConnection(ctx)
		fmt.Fprintln(out, statusLine(connected, time.Now()))
		if report != nil && report.DatabaseError != "" {
			fmt.Fprintln(out, styleWarn.Render("  "+report.DatabaseError))
		}
		if err != nil {
			fmt.Fprintln(out, styleDim.Render("  "+err.Error()))
		}
		if !connected {
			return errDisconnected
		}
		return nil
	}

	fmt.Fprintln(out, styleDim.Render("Monitoring "+client.BaseURL()+" ..."))

	// The first delivery is the initial Disconnected state, not a change.
	first := true
	mon.OnConnectionChange(func(connected bool) {
		if first {
			first = false
			return
		}
		fmt.Fprintln(out, statusLine(connected, time.Now()))
	})

	g, gctx := errgroup.WithContext(ctx)

	var hub *relay.Hub
	var relayServer *http.Server
	if cfg.Monitor.RelayAddr != "" {
		hub = relay.NewHub(relay.DefaultConfig(), logger)
		mon.OnConnectionChange(hub.Publish)

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		relayServer = &http.Server{
			Addr:              cfg.Monitor.RelayAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info("relay listening", "addr", relayServer.Addr)
			if err := relayServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("relay server: %w", err)
			}
			return nil
		})
	}

	if err := mon.Start(gctx); err != nil {
		return err
	}

	var watcher *netwatch.Watcher
	if cfg.Monitor.WatchNetwork {
		watcher = netwatch.New(netwatch.DefaultConfig(), mon, logger)
		if err := watcher.Start(gctx); err != nil {
			return err
		}
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if watcher != nil {
			watcher.Stop(shutdownCtx)
		}
		if err := mon.Stop(shutdownCtx); err != nil {
			logger.Warn("monitor did not stop cleanly", "error", err)
		}
		if hub != nil {
			hub.Close()
			return relayServer.Shutdown(shutdownCtx)
		}
		return nil
	})

	return ignoreCanceled(g.Wait())
}
