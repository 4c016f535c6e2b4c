// Package prometheus renders tokengate metrics for Prometheus scrapes.
//
// [NewPrometheusExporter] accepts a [tokengate.Engine] and exposes an
// [http.Handler] that renders all counters and histograms in Prometheus
// text exposition format. Counter names are prefixed tokengate_*_total;
// the single histogram is tokengate_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount
//     the Handler where they want it.
//   - Mutate engine state.
package prometheus
