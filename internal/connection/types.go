package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/king0079z/Tender-Tracker-60/internal/database"
)

// Errors
var (
	ErrNotConnected   = errors.New("database not connected")
	ErrNotInitialized = errors.New("database not initialized")
	ErrClosed         = errors.New("connection manager closed")
)

// State is the connectivity state of a Manager or a client monitor.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

// BootstrapError reports that the connection succeeded but the one-time
// bootstrap step did not. The connection stays usable.
type BootstrapError struct {
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap database: %v", e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// Bootstrapper runs the one-time initialization against a fresh connection.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, conn database.Conn) error
}

// BootstrapFunc is a function adapter for Bootstrapper.
type BootstrapFunc func(ctx context.Context, conn database.Conn) error

func (f BootstrapFunc) Bootstrap(ctx context.Context, conn database.Conn) error {
	return f(ctx, conn)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Retry        RetryPolicy   // Establishment retry; fixed delay
	ProbeTimeout time.Duration // Bound on liveness statements and health pings
	Bootstrap    bool          // Run the bootstrapper after the first connection
	Mode         string        // Reported in health reports
	HasConnStr   bool          // Reported in health reports
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Retry:        FixedRetry(5, 5*time.Second),
		ProbeTimeout: 5 * time.Second,
		Bootstrap:    true,
		Mode:         "production",
		HasConnStr:   true,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State             State   `json:"state"`
	Bootstrapped      bool    `json:"bootstrapped"`
	Retries           int     `json:"retries"`
	EstablishAttempts int64   `json:"establishAttempts"`
	EstablishFailures int64   `json:"establishFailures"`
	Reconnects        int64   `json:"reconnects"`
	Queries           int64   `json:"queries"`
	QueryErrors       int64   `json:"queryErrors"`
	LastError         string  `json:"lastError,omitempty"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}
