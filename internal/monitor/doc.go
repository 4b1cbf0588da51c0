// Package monitor implements the client-side Connection Monitor.
//
// The Connection Monitor:
//   - Polls the server health endpoint every 30 seconds and on network changes
//   - Throttles probes so bursts of callers share one request
//   - Gates statement execution on connectivity and retries unreachable
//     failures with exponential backoff
//   - Notifies subscribers when connectivity flips
package monitor
