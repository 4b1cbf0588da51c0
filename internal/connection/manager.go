package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/king0079z/Tender-Tracker-60/internal/database"
	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
)

// livenessStatement is run against every freshly opened connection.
const livenessStatement = "SELECT 1"

// Manager owns the server's single database connection.
type Manager struct {
	cfg    ManagerConfig
	dial   database.Dialer
	boot   Bootstrapper
	logger *slog.Logger

	instanceID string
	started    time.Time

	// Seams for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	// Establishment is serialized: concurrent callers share one attempt.
	group singleflight.Group

	// bootstrapped is the one-shot gate, set after the first successful
	// bootstrap and never cleared.
	bootstrapped atomic.Bool

	mu      sync.RWMutex
	conn    database.Conn
	state   State
	retries int // failed attempts since the last success
	lastErr error
	closed  bool

	// Lifetime context for background re-establishment.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	establishAttempts atomic.Int64
	establishFailures atomic.Int64
	reconnects        atomic.Int64
	queries           atomic.Int64
	queryErrors       atomic.Int64
}

// NewManager creates a Manager. No connection is opened until Start,
// Establish, Execute or HealthReport is called. boot may be nil.
func NewManager(cfg ManagerConfig, dial database.Dialer, boot Bootstrapper, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:        cfg,
		dial:       dial,
		boot:       boot,
		logger:     logger.With("component", "connection"),
		instanceID: uuid.NewString(),
		started:    time.Now(),
		sleep:      SleepContext,
		now:        time.Now,
		state:      StateDisconnected,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start performs the startup establishment. A *BootstrapError means the
// database is reachable but could not be initialized.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info("connecting to database",
		"max_attempts", m.cfg.Retry.MaxAttempts,
		"retry_delay", m.cfg.Retry.BaseDelay,
	)

	if err := m.Establish(ctx); err != nil {
		return err
	}

	m.logger.Info("database ready", "bootstrapped", m.bootstrapped.Load())
	return nil
}

// Establish tears down any existing connection and opens a new one,
// retrying with the configured fixed delay. Concurrent calls share a single
// attempt; ctx only bounds how long this caller waits for it.
func (m *Manager) Establish(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}

	ch := m.group.DoChan("establish", func() (any, error) {
		return nil, m.establish(m.ctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// establish is the retry loop. The retry counter persists across calls and
// resets on success, so once attempts are exhausted each later trigger makes
// a single attempt.
func (m *Manager) establish(ctx context.Context) error {
	for {
		conn, err := m.attempt(ctx)
		if err == nil {
			return m.bootstrap(ctx, conn)
		}
		if ctx.Err() != nil || errors.Is(err, ErrClosed) {
			return err
		}

		m.mu.Lock()
		m.retries++
		n := m.retries
		m.mu.Unlock()

		if n > m.cfg.Retry.MaxAttempts {
			m.logger.Error("database connection failed, giving up",
				"attempts", n,
				"error", err,
			)
			return fmt.Errorf("establish connection: %w", err)
		}

		delay := m.cfg.Retry.Delay(n)
		m.logger.Warn("database connection failed, retrying",
			"retry", n,
			"max_retries", m.cfg.Retry.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		if err := m.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// attempt makes one connection attempt: close the old connection, dial, and
// run the liveness statement.
func (m *Manager) attempt(ctx context.Context) (database.Conn, error) {
	m.establishAttempts.Add(1)

	m.mu.Lock()
	old := m.conn
	m.conn = nil
	m.state = StateConnecting
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	conn, err := m.dial(ctx)
	if err == nil {
		pctx, cancel := m.probeContext(ctx)
		_, err = conn.Query(pctx, livenessStatement, nil)
		cancel()
		if err != nil {
			conn.Close()
			err = fmt.Errorf("liveness check: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil && m.closed {
		conn.Close()
		err = ErrClosed
	}
	if err != nil {
		m.establishFailures.Add(1)
		m.state = StateFailed
		m.lastErr = err
		return nil, err
	}

	m.conn = conn
	m.state = StateConnected
	m.retries = 0
	m.lastErr = nil
	m.logger.Info("database connection established", "dialect", conn.Dialect())
	return conn, nil
}

// bootstrap runs the bootstrapper once per process. Failure leaves the
// connection in place and the gate unset.
func (m *Manager) bootstrap(ctx context.Context, conn database.Conn) error {
	if m.boot == nil || !m.cfg.Bootstrap || m.bootstrapped.Load() {
		return nil
	}

	m.logger.Info("running database bootstrap")
	if err := m.boot.Bootstrap(ctx, conn); err != nil {
		m.logger.Error("database bootstrap failed", "error", err)
		return &BootstrapError{Err: err}
	}

	m.bootstrapped.Store(true)
	m.logger.Info("database bootstrap completed")
	return nil
}

// Execute runs a statement. When the manager is not usable it makes one
// establishment attempt first. Connection-class failures demote the manager
// and schedule a background re-establish; the error is returned either way
// and never retried here.
func (m *Manager) Execute(ctx context.Context, text string, params []any) (*protocol.QueryResult, error) {
	if !m.usable() {
		m.logger.Info("database not ready, attempting to connect")
		if err := m.Establish(ctx); err != nil {
			var bootErr *BootstrapError
			if errors.As(err, &bootErr) {
				return nil, fmt.Errorf("%w: %w", ErrNotInitialized, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
	}

	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	m.queries.Add(1)
	m.logger.Debug("executing statement", "text", text, "params", len(params))

	result, err := conn.Query(ctx, text, params)
	if err != nil {
		m.queryErrors.Add(1)
		if database.IsConnectionError(err) && ctx.Err() == nil {
			m.logger.Warn("connection lost during statement", "error", err)
			if m.demote(conn, StateDisconnected, err) {
				m.reestablishAsync()
			}
		} else {
			m.logger.Debug("statement failed", "error", err, "code", database.ErrorCode(err))
		}
		return nil, err
	}

	return result, nil
}

// HealthReport composes the current health report. It never fails; problems
// are described in the report itself.
func (m *Manager) HealthReport(ctx context.Context) protocol.HealthReport {
	now := m.now()
	report := protocol.HealthReport{
		Status:     protocol.StatusHealthy,
		Uptime:     now.Sub(m.started).Seconds(),
		Timestamp:  now.UTC(),
		Database:   protocol.DatabaseDisconnected,
		InstanceID: m.instanceID,
		Environment: protocol.Environment{
			Mode:                m.cfg.Mode,
			HasConnectionString: m.cfg.HasConnStr,
		},
	}

	m.mu.RLock()
	state, conn := m.state, m.conn
	m.mu.RUnlock()

	switch {
	case state == StateConnected && conn != nil && m.ready():
		pctx, cancel := m.probeContext(ctx)
		err := conn.Ping(pctx)
		cancel()

		if err == nil {
			report.Database = protocol.DatabaseConnected
			break
		}
		if ctx.Err() != nil {
			// The caller went away; that says nothing about the database.
			report.Database = protocol.DatabaseConnected
			break
		}

		m.logger.Error("database health check failed", "error", err)
		report.Database = protocol.DatabaseError
		report.DatabaseError = err.Error()
		if m.demote(conn, StateFailed, err) {
			m.reestablishAsync()
		}

	default:
		// One externally triggered attempt, bounded by the caller.
		err := m.Establish(ctx)

		m.mu.RLock()
		connected := m.state == StateConnected
		m.mu.RUnlock()

		var bootErr *BootstrapError
		switch {
		case err == nil && connected:
			report.Database = protocol.DatabaseConnected
		case errors.As(err, &bootErr):
			report.Database = protocol.DatabaseConnected
			report.Status = protocol.StatusError
			report.DatabaseError = err.Error()
		case err != nil:
			report.DatabaseError = err.Error()
		}
	}

	report.Bootstrapped = m.bootstrapped.Load()
	return report
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Bootstrapped reports whether the bootstrap gate is set.
func (m *Manager) Bootstrapped() bool {
	return m.bootstrapped.Load()
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{
		State:             m.state,
		Bootstrapped:      m.bootstrapped.Load(),
		Retries:           m.retries,
		EstablishAttempts: m.establishAttempts.Load(),
		EstablishFailures: m.establishFailures.Load(),
		Reconnects:        m.reconnects.Load(),
		Queries:           m.queries.Load(),
		QueryErrors:       m.queryErrors.Load(),
		UptimeSeconds:     m.now().Sub(m.started).Seconds(),
	}
	if m.lastErr != nil {
		stats.LastError = m.lastErr.Error()
	}
	return stats
}

// Close stops background re-establishment and closes the connection. Calls
// after the first return nil.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
		m.logger.Info("database connection closed")
	}
	return nil
}

// usable reports whether statements may run: connected, and bootstrapped
// when bootstrap is enabled.
func (m *Manager) usable() bool {
	m.mu.RLock()
	connected := m.state == StateConnected && m.conn != nil
	m.mu.RUnlock()
	return connected && m.ready()
}

func (m *Manager) ready() bool {
	return m.boot == nil || !m.cfg.Bootstrap || m.bootstrapped.Load()
}

// demote moves the manager out of connected if conn is still the live
// connection. It reports whether the state changed.
func (m *Manager) demote(conn database.Conn, to State, cause error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn || m.state != StateConnected {
		return false
	}
	m.state = to
	m.lastErr = cause
	return true
}

// reestablishAsync re-establishes in the background without blocking the
// caller.
func (m *Manager) reestablishAsync() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	m.reconnects.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Establish(m.ctx); err != nil && m.ctx.Err() == nil {
			m.logger.Warn("background reconnection failed", "error", err)
		}
	}()
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.ProbeTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	}
	return context.WithCancel(ctx)
}
