package failoverwatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/kv-failover/internal/metrics"
)

// StateReporter is the slice of the dispatcher the watch needs.
type StateReporter interface {
	IsFailedOver() bool
}

// Watch periodically polls a dispatcher's failed-over state, logging
// transitions and forwarding them to the metrics collector. It is purely
// observational and never mutates dispatcher state.
func Watch(
	ctx context.Context,
	cache string,
	reporter StateReporter,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := reporter.IsFailedOver()
	emit(collector, cache, last)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Failover watch stopped",
				slog.String("cache", cache))
			return

		case <-ticker.C:
			failedOver := reporter.IsFailedOver()
			if failedOver == last {
				continue
			}
			last = failedOver

			if failedOver {
				logger.Warn("Primary cluster failed over",
					slog.String("cache", cache))
			} else {
				logger.Info("Primary cluster restored",
					slog.String("cache", cache))
			}

			emit(collector, cache, failedOver)
		}
	}
}

func emit(collector *metrics.Collector, cache string, failedOver bool) {
	if collector == nil {
		return
	}
	collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventFailoverChanged,
		Timestamp:  time.Now(),
		Cache:      cache,
		FailedOver: failedOver,
	})
}
