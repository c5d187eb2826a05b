// Package prometheus renders identity engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [identity.Engine] and exposes an
// [net/http.Handler] that renders every engine counter. Counter names are
// prefixed identity_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry (callers mount the Handler).
//   - Mutate engine state.
package prometheus
