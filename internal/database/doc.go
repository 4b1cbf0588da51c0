// Package database opens the single live database handle behind the tracker
// server.
//
// Two backends satisfy Conn:
//   - PostgreSQL (production, Azure): a pgxpool connection pool
//   - SQLite (development and tests): modernc.org/sqlite through database/sql
//
// The backend is chosen from the connection string scheme. Errors raised on
// the connect path are wrapped in SafeError so connection strings never reach
// logs or responses.
package database
