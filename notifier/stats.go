package notifier

import (
	metrics "github.com/rcrowley/go-metrics"
)

const (
	metricEnqueued   = "errnotify.enqueued"
	metricDelivered  = "errnotify.delivered"
	metricFailed     = "errnotify.failed"
	metricDropped    = "errnotify.dropped"
	metricQueueDepth = "errnotify.queue_depth"
	metricLatency    = "errnotify.delivery_latency"
)

// Stats is a point-in-time view of the delivery counters of a Client.
type Stats struct {
	Enqueued  int64
	Delivered int64
	Failed    int64
	Dropped   int64
	Pending   int64
}

type counters struct {
	registry  metrics.Registry
	enqueued  metrics.Counter
	delivered metrics.Counter
	failed    metrics.Counter
	dropped   metrics.Counter
	depth     metrics.Gauge
	latency   metrics.Timer
}

func newCounters() *counters {
	r := metrics.NewRegistry()
	return &counters{
		registry:  r,
		enqueued:  metrics.GetOrRegisterCounter(metricEnqueued, r),
		delivered: metrics.GetOrRegisterCounter(metricDelivered, r),
		failed:    metrics.GetOrRegisterCounter(metricFailed, r),
		dropped:   metrics.GetOrRegisterCounter(metricDropped, r),
		depth:     metrics.GetOrRegisterGauge(metricQueueDepth, r),
		latency:   metrics.GetOrRegisterTimer(metricLatency, r),
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Enqueued:  c.enqueued.Count(),
		Delivered: c.delivered.Count(),
		Failed:    c.failed.Count(),
		Dropped:   c.dropped.Count(),
		Pending:   c.depth.Value(),
	}
}
