// Package monitoring provides Prometheus metrics and the Gin middleware that
// records per-request counters and latencies. Domain components receive the
// Metrics collector by injection and update their own gauges and counters.
package monitoring
