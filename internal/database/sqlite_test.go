package database

import (
	"context"
	"testing"
)

func openMemory(t *testing.T) *SQLiteConn {
	t.Helper()
	conn, err := OpenSQLite(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn
}

func TestSQLiteConn_QueryAndExec(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)

	if conn.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q, want %q", conn.Dialect(), DialectSQLite)
	}

	if _, err := conn.Exec(ctx, `CREATE TABLE vendors (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	n, err := conn.Exec(ctx, `INSERT INTO vendors (id, name) VALUES (?, ?), (?, ?)`, 1, "Accenture", 2, "Atos")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Errorf("rows affected = %d, want 2", n)
	}

	result, err := conn.Query(ctx, `SELECT id, name FROM vendors WHERE id >= ? ORDER BY id`, []any{1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if result.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", result.RowCount)
	}
	if len(result.Fields) != 2 || result.Fields[0].Name != "id" || result.Fields[1].Name != "name" {
		t.Errorf("Fields = %+v, want id, name", result.Fields)
	}
	if got := result.Rows[1]["name"]; got != "Atos" {
		t.Errorf("Rows[1][name] = %v, want Atos", got)
	}
}

func TestSQLiteConn_EmptyResult(t *testing.T) {
	conn := openMemory(t)

	result, err := conn.Query(context.Background(), `SELECT 1 AS one WHERE 1 = 0`, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Rows == nil {
		t.Error("Rows should be an empty slice, not nil")
	}
	if result.RowCount != 0 {
		t.Errorf("RowCount = %d, want 0", result.RowCount)
	}
}

func TestSQLiteConn_StatementErrorIsNotConnectionError(t *testing.T) {
	conn := openMemory(t)

	_, err := conn.Query(context.Background(), `SELECT * FROM missing_table`, nil)
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	if IsConnectionError(err) {
		t.Errorf("IsConnectionError(%v) = true, want false", err)
	}
}

func TestSQLiteConn_ClosedIsConnectionError(t *testing.T) {
	conn, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	conn.Close()
	conn.Close() // idempotent

	_, err = conn.Query(context.Background(), `SELECT 1`, nil)
	if err == nil {
		t.Fatal("expected error querying a closed database")
	}
	if !IsConnectionError(err) {
		t.Errorf("IsConnectionError(%v) = false, want true", err)
	}
}

func TestSQLiteConn_ForeignKeysEnabled(t *testing.T) {
	conn := openMemory(t)

	result, err := conn.Query(context.Background(), `PRAGMA foreign_keys`, nil)
	if err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	if v, ok := result.Rows[0]["foreign_keys"].(int64); !ok || v != 1 {
		t.Errorf("foreign_keys = %v, want 1", result.Rows[0]["foreign_keys"])
	}
}

func TestSQLiteConn_Version(t *testing.T) {
	conn := openMemory(t)

	v, err := conn.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if len(v) <= len("SQLite ") {
		t.Errorf("Version() = %q", v)
	}
}

func TestNewDialer_SQLite(t *testing.T) {
	dial := NewDialer(testDatabaseConfig("sqlite::memory:"))

	conn, err := dial(context.Background())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if conn.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q, want sqlite", conn.Dialect())
	}
	if err := conn.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
