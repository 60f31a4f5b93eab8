// Package failoverwatch runs a background goroutine per cache that logs
// breaker transitions and publishes the failed-over flag to the metrics
// collector.
package failoverwatch
