// Package schema creates the tracker tables and seeds the vendor list.
//
// Bootstrap is idempotent: tables are created with IF NOT EXISTS and vendors
// are inserted only when the timelines table is empty. DDL is rendered per
// dialect so the same bootstrap runs against PostgreSQL and SQLite.
package schema
