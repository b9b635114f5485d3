// Package metric provides the Prometheus metrics registry for the grain
// client runtime.
//
// A single MetricsRegistry owns the process's prometheus.Registry and the
// core client metrics (request/response counters, callback and local-object
// gauges, gateway connectivity). Components register their own metrics
// under a service name so duplicate registrations fail loudly instead of
// silently shadowing each other.
package metric
