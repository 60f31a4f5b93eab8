// Package metrics provides real-time metrics collection for the failover
// dispatcher's HTTP surface.
//
// A channel-based event pipeline asynchronously collects:
//   - Request counts per serving cluster (primary/backup)
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//   - Failed-over state per cache name
//
// The collector runs in a dedicated goroutine; events are sent via a
// buffered channel with non-blocking semantics so the request path never
// stalls on metrics. Shutdown drains pending events.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Cluster:    "primary",
//		Duration:   3 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot("memory")
package metrics
