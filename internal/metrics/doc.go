// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Session connection status, scheduled reconnects and exhausted retries
//   - Inbound chat events by kind and outbound sends by result
//   - Transcript archive rows by outcome and flush latency
package metrics
