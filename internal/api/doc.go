// Package api provides the HTTP client the connection monitor uses to reach
// the tracker server.
//
// Endpoints:
//   - GET  /api/health  health report, 200 when the database is connected, 503 otherwise
//   - POST /api/query   statement execution
//
// Failures are split in two: a *TransportError means no response arrived,
// an *APIError means the server answered with a non-success status.
package api
