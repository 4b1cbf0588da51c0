package database

import (
	"context"

	"github.com/king0079z/Tender-Tracker-60/internal/config"
	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
)

// Dialect identifies the SQL flavour spoken by a Conn.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Conn is a live database handle. Implementations arbitrate concurrent use
// themselves, so callers need no extra locking around Query or Exec.
type Conn interface {
	// Ping performs a cheap liveness round trip.
	Ping(ctx context.Context) error

	// Query runs a statement and returns every row with column metadata.
	Query(ctx context.Context, text string, params []any) (*protocol.QueryResult, error)

	// Exec runs a statement that returns no rows and reports rows affected.
	Exec(ctx context.Context, text string, params ...any) (int64, error)

	// Dialect reports the SQL flavour of the backend.
	Dialect() Dialect

	// Close releases the handle. It is safe to call more than once.
	Close()
}

// Dialer opens a fresh Conn. Each call must return a new handle.
type Dialer func(ctx context.Context) (Conn, error)

// NewDialer returns a Dialer for the configured connection string. sqlite:
// and file: URLs open SQLite; everything else is handed to pgx.
func NewDialer(cfg config.DatabaseConfig) Dialer {
	if IsSQLiteURL(cfg.ConnectionString) {
		return func(ctx context.Context) (Conn, error) {
			return OpenSQLite(ctx, cfg.ConnectionString)
		}
	}
	return func(ctx context.Context) (Conn, error) {
		return OpenPostgres(ctx, cfg)
	}
}
