// Package server exposes the connection manager over HTTP.
//
// Routes:
//   - GET  /api/health, /health  health report (200 connected, 503 otherwise)
//   - POST /api/query, /query    statement execution
//   - GET  /debug/stats          manager counters
//
// Anything else under /api/ is a JSON 404. Other paths serve the static
// single-page app when a static directory is configured.
package server
