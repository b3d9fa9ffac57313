// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Transport connection state, request and push rates, reconnects
//   - Service cache hits and misses
//   - Chart quote requests by style and outcome
//   - HTTP request counts and latencies per route
//   - OAuth sessions and whoami poll results
//
// All helpers are safe to call on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics
