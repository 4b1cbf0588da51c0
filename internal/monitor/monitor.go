package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/king0079z/Tender-Tracker-60/internal/api"
	"github.com/king0079z/Tender-Tracker-60/internal/connection"
	"github.com/king0079z/Tender-Tracker-60/internal/observer"
	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
)

// Prober is the server surface the monitor needs. *api.Client satisfies it.
type Prober interface {
	Health(ctx context.Context) (*protocol.HealthReport, error)
	Query(ctx context.Context, text string, params []any) (*protocol.QueryResult, error)
}

// Config holds monitor configuration.
type Config struct {
	PollInterval time.Duration          // Scheduled probe interval (default: 30s)
	PollThrottle time.Duration          // Minimum spacing between probes (default: 1s)
	ProbeTimeout time.Duration          // Per-probe timeout, zero for none (default: 10s)
	Backoff      connection.RetryPolicy // Retry policy for unreachable query failures
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		PollThrottle: time.Second,
		ProbeTimeout: 10 * time.Second,
		Backoff:      connection.ExponentialBackoff(3, time.Second, 2, 10*time.Second),
	}
}

// Stats holds monitor counters.
type Stats struct {
	Probes        int64 `json:"probes"`
	ProbeFailures int64 `json:"probeFailures"`
	Queries       int64 `json:"queries"`
	Retries       int64 `json:"retries"`
}

// Monitor tracks whether the tracker server and its database are reachable.
type Monitor struct {
	cfg       Config
	client    Prober
	logger    *slog.Logger
	connected *observer.Registry[bool]

	// Seams for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	pollMu   sync.Mutex
	lastPoll time.Time

	mu         sync.RWMutex
	state      connection.State
	lastReport *protocol.HealthReport
	lastErr    error

	probes        atomic.Int64
	probeFailures atomic.Int64
	queries       atomic.Int64
	retries       atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Monitor. It starts Disconnected.
func New(cfg Config, client Prober, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "monitor")
	return &Monitor{
		cfg:       cfg,
		client:    client,
		logger:    logger,
		connected: observer.NewRegistry(false, logger),
		sleep:     connection.SleepContext,
		now:       time.Now,
		state:     connection.StateDisconnected,
	}
}

// Start begins the polling loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection monitor started",
		"interval", m.cfg.PollInterval,
		"throttle", m.cfg.PollThrottle,
	)

	return nil
}

// Stop gracefully shuts down the monitor and drops all subscribers.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.connected.Close()
		m.logger.Info("connection monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	// Poll immediately on start.
	m.PollHealth(m.ctx)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.PollHealth(m.ctx)
		}
	}
}

// PollHealth probes the server unless a probe went out within the throttle
// window, in which case it returns the current connectivity unchanged.
func (m *Monitor) PollHealth(ctx context.Context) bool {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	now := m.now()
	if !m.lastPoll.IsZero() && now.Sub(m.lastPoll) < m.cfg.PollThrottle {
		return m.IsConnected()
	}
	m.lastPoll = now

	connected, _, _ := m.probe(ctx)
	return connected
}

// TestConnection probes the server immediately, ignoring the throttle, and
// returns the report it got.
func (m *Monitor) TestConnection(ctx context.Context) (bool, *protocol.HealthReport, error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	m.lastPoll = m.now()
	return m.probe(ctx)
}

// probe must be called with pollMu held.
func (m *Monitor) probe(ctx context.Context) (bool, *protocol.HealthReport, error) {
	prev := m.State()
	if prev != connection.StateConnected {
		m.setState(connection.StateConnecting)
	}

	pctx := ctx
	if m.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		defer cancel()
	}

	m.probes.Add(1)
	report, err := m.client.Health(pctx)
	if err != nil {
		// The caller gave up; that says nothing about the server.
		if ctx.Err() != nil {
			m.setState(prev)
			return prev == connection.StateConnected, nil, err
		}

		m.probeFailures.Add(1)
		m.logger.Warn("health probe failed", "error", err)
		m.record(nil, err)
		m.setState(connection.StateDisconnected)
		return false, nil, err
	}

	if report.DatabaseError != "" {
		m.logger.Warn("server reports database error",
			"status", report.Status,
			"database", report.Database,
			"error", report.DatabaseError,
		)
	}

	m.record(report, nil)

	if report.Healthy() {
		m.setState(connection.StateConnected)
		return true, report, nil
	}
	m.setState(connection.StateDisconnected)
	return false, report, nil
}

// Execute runs a statement on the server. When the server is not known to
// be reachable it probes first. Unreachable failures mark the monitor
// disconnected and are retried with backoff; any other failure is returned
// as is.
func (m *Monitor) Execute(ctx context.Context, text string, params []any) (*protocol.QueryResult, error) {
	m.queries.Add(1)

	var lastErr error
	for attempt := 0; attempt <= m.cfg.Backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := m.cfg.Backoff.Delay(attempt)
			m.retries.Add(1)
			m.logger.Debug("retrying query",
				"attempt", attempt,
				"backoff", delay,
				"error", lastErr,
			)
			if err := m.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		result, err := m.executeOnce(ctx, text, params)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil || !IsUnreachable(err) {
			return nil, err
		}

		lastErr = err
		m.setState(connection.StateDisconnected)
	}

	return nil, fmt.Errorf("query failed after %d attempts: %w", m.cfg.Backoff.MaxAttempts+1, lastErr)
}

func (m *Monitor) executeOnce(ctx context.Context, text string, params []any) (*protocol.QueryResult, error) {
	if !m.IsConnected() && !m.PollHealth(ctx) {
		return nil, connection.ErrNotConnected
	}

	m.logger.Debug("executing query", "statement", text)
	return m.client.Query(ctx, text, params)
}

// IsUnreachable reports whether err means the server or its database could
// not be reached, as opposed to a statement the server rejected.
func IsUnreachable(err error) bool {
	if errors.Is(err, connection.ErrNotConnected) {
		return true
	}

	var transportErr *api.TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	return false
}

// NetworkUp reacts to the host regaining network connectivity with an
// immediate probe.
func (m *Monitor) NetworkUp(ctx context.Context) bool {
	m.logger.Info("network up, probing server")
	return m.PollHealth(ctx)
}

// NetworkDown marks the server unreachable without probing.
func (m *Monitor) NetworkDown() {
	m.logger.Info("network down")
	m.setState(connection.StateDisconnected)
}

// OnConnectionChange registers fn to be called with the current
// connectivity and again on every change.
func (m *Monitor) OnConnectionChange(fn func(connected bool)) (unsubscribe func()) {
	return m.connected.Subscribe(fn)
}

// Watch returns a channel carrying connectivity changes until ctx ends or
// the monitor stops.
func (m *Monitor) Watch(ctx context.Context) <-chan bool {
	return m.connected.Watch(ctx)
}

// IsConnected reports whether the last probe found the server healthy.
func (m *Monitor) IsConnected() bool {
	return m.State() == connection.StateConnected
}

// State returns the current connectivity state.
func (m *Monitor) State() connection.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastReport returns the most recent health report and probe error.
func (m *Monitor) LastReport() (*protocol.HealthReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport, m.lastErr
}

// Stats returns monitor counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Probes:        m.probes.Load(),
		ProbeFailures: m.probeFailures.Load(),
		Queries:       m.queries.Load(),
		Retries:       m.retries.Load(),
	}
}

func (m *Monitor) record(report *protocol.HealthReport, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report != nil {
		m.lastReport = report
	}
	m.lastErr = err
}

// setState updates the state and notifies subscribers outside the lock.
func (m *Monitor) setState(s connection.State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev != s {
		m.logger.Debug("state changed", "from", prev, "to", s)
	}
	if m.connected.Set(s == connection.StateConnected) {
		if s == connection.StateConnected {
			m.logger.Info("server connected")
		} else {
			m.logger.Warn("server connection lost", "state", s)
		}
	}
}
