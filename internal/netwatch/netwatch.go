// Package netwatch watches the host's network interfaces and reports when
// connectivity comes and goes.
package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler receives network transitions. *monitor.Monitor satisfies it.
type Handler interface {
	NetworkUp(ctx context.Context) bool
	NetworkDown()
}

// ProbeFunc reports whether the host currently has a usable network.
type ProbeFunc func() (bool, error)

// Config holds watcher configuration.
type Config struct {
	Interval time.Duration // Interface poll interval (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Second}
}

// Watcher polls interface state and forwards transitions to a Handler.
type Watcher struct {
	cfg     Config
	handler Handler
	probe   ProbeFunc
	logger  *slog.Logger

	// Last observed state; nil until the first successful probe.
	up *bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher using InterfacesUp as its probe.
func New(cfg Config, handler Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		probe:   InterfacesUp,
		logger:  logger.With("component", "netwatch"),
	}
}

// Start begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("network watcher started", "interval", w.cfg.Interval)
	return nil
}

// Stop waits for the watch loop to exit.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("network watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.check(w.ctx)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.check(w.ctx)
		}
	}
}

// check probes once and reports a transition. The first observation only
// reports a down network; an up network at startup is already covered by
// the monitor's own first poll.
func (w *Watcher) check(ctx context.Context) {
	up, err := w.probe()
	if err != nil {
		w.logger.Warn("failed to read network interfaces", "error", err)
		return
	}

	prev := w.up
	w.up = &up

	switch {
	case prev == nil && !up:
		w.handler.NetworkDown()
	case prev == nil:
	case !*prev && up:
		w.logger.Info("network interface up")
		w.handler.NetworkUp(ctx)
	case *prev && !up:
		w.logger.Warn("all network interfaces down")
		w.handler.NetworkDown()
	}
}

// InterfacesUp reports whether any non-loopback interface is up and has an
// address assigned.
func InterfacesUp() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true, nil
		}
	}

	return false, nil
}
