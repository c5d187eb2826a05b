// Package metrics provides lock-free counters for identity-core
// observability.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. The write path never allocates.
//
// This package is internal. The root package re-exports the Metrics type and
// the MetricID constants; the exporters under metrics/export render snapshots
// for Prometheus and OpenTelemetry.
package metrics
