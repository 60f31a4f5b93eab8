package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventClusterServed     EventType = "cluster_served"
	EventResponseCompleted EventType = "response_completed"
	EventFailoverChanged   EventType = "failover_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Cache      string
	Cluster    string
	Duration   time.Duration
	StatusCode int
	FailedOver bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit sends an event without blocking; events are dropped when the
// buffer is full rather than stalling the request path.
func (c *Collector) Emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Cluster)

	case EventClusterServed:
		c.metrics.RecordClusterServed(event.Cluster)

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Cluster, event.Duration, event.StatusCode)

	case EventFailoverChanged:
		c.metrics.UpdateFailedOver(event.Cache, event.FailedOver)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(storeType string) Snapshot {
	return c.metrics.Snapshot(storeType)
}
