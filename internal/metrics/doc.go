// Package metrics collects task throughput and latency for a dispatcher run.
//
// Metrics keeps lock-free counters for assigned and completed tasks plus a
// bounded sample of assignment-to-result latencies (for P99). The same
// events are mirrored into Prometheus collectors on a private registry, so
// several runs in one process (tests) never collide on registration.
//
// # Basic Usage
//
//	m := metrics.New()
//	m.RecordAssigned(0)
//	m.RecordCompleted(0, 12*time.Millisecond, false)
//
//	snap := m.Snapshot()
//	fmt.Printf("%d done, p99 %v\n", snap.Completed, snap.P99Latency)
//
// # Exposition
//
// Registry returns the registry to serve with promhttp.HandlerFor.
package metrics
