package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
)

// SQLiteConn is a Conn backed by modernc.org/sqlite. Statements use ? or
// $N placeholders.
type SQLiteConn struct {
	db        *sql.DB
	closeOnce sync.Once
}

// OpenSQLite opens the database named by a sqlite:, file: or :memory:
// connection string and enables foreign keys.
func OpenSQLite(ctx context.Context, connStr string) (*SQLiteConn, error) {
	path := sqlitePath(connStr)
	if path == "" {
		return nil, errors.New("database: sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &SafeError{msg: "open sqlite database", cause: err}
	}

	// A single connection keeps :memory: databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, &SafeError{msg: fmt.Sprintf("open sqlite database (%s): %s", path, describe(err)), cause: err}
	}

	return &SQLiteConn{db: db}, nil
}

// Ping verifies the database file is reachable.
func (c *SQLiteConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Query runs text and returns every row. RowCount is the number of rows
// returned; SQLite does not report rows affected through a row cursor.
func (c *SQLiteConn) Query(ctx context.Context, text string, params []any) (*protocol.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, text, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	fields := make([]protocol.Field, len(cols))
	for i, col := range cols {
		fields[i] = protocol.Field{Name: col.Name(), TypeName: col.DatabaseTypeName()}
	}

	result := &protocol.QueryResult{
		Rows:   make([]map[string]any, 0),
		Fields: fields,
	}
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[fields[i].Name] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = int64(len(result.Rows))
	return result, nil
}

// Exec runs a statement that returns no rows.
func (c *SQLiteConn) Exec(ctx context.Context, text string, params ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, text, params...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Dialect returns DialectSQLite.
func (c *SQLiteConn) Dialect() Dialect { return DialectSQLite }

// Close closes the database.
func (c *SQLiteConn) Close() {
	c.closeOnce.Do(func() { c.db.Close() })
}

// Version returns the SQLite library version.
func (c *SQLiteConn) Version(ctx context.Context) (string, error) {
	var v string
	if err := c.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v); err != nil {
		return "", err
	}
	return "SQLite " + v, nil
}
