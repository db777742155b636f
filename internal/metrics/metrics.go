// Package metrics exposes floq's Prometheus instruments.
//
// A Collector satisfies workqueue.Observer and pebblestore.MetricsHook, so
// the runtime hands the same value to every queue and to the dead-letter
// store:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	q, _ := workqueue.New(workqueue.Options{Observer: m, ...})
//	db, _ := pebblestore.Open(pebblestore.Options{Metrics: m, ...})
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/floq/internal/workqueue"
)

const namespace = "floq"

// Collector records queue transitions, queue depth and storage latency.
type Collector struct {
	events   *prometheus.CounterVec
	visible  *prometheus.GaugeVec
	inFlight *prometheus.GaugeVec

	forwarded *prometheus.CounterVec

	storeRead   prometheus.Histogram
	storeCommit prometheus.Histogram
	storeBytes  *prometheus.CounterVec
}

// New builds a Collector and registers it with reg. A nil reg skips
// registration, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_events_total",
			Help:      "Message state transitions by queue and event.",
		}, []string{"queue", "event"}),
		visible: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_visible_messages",
			Help:      "Messages currently receivable.",
		}, []string{"queue"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_inflight_messages",
			Help:      "Messages currently hidden behind a receipt.",
		}, []string{"queue"}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadletter_forwarded_total",
			Help:      "Dead letters handed to each sink, by outcome.",
		}, []string{"sink", "outcome"}),
		storeRead: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "read_seconds",
			Help:      "Dead-letter store read latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		storeCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_seconds",
			Help:      "Dead-letter store batch commit latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		storeBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bytes_total",
			Help:      "Bytes read from and committed to the dead-letter store.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.events.Describe(ch)
	c.visible.Describe(ch)
	c.inFlight.Describe(ch)
	c.forwarded.Describe(ch)
	c.storeRead.Describe(ch)
	c.storeCommit.Describe(ch)
	c.storeBytes.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.events.Collect(ch)
	c.visible.Collect(ch)
	c.inFlight.Collect(ch)
	c.forwarded.Collect(ch)
	c.storeRead.Collect(ch)
	c.storeCommit.Collect(ch)
	c.storeBytes.Collect(ch)
}

// Observe implements workqueue.Observer.
func (c *Collector) Observe(queue string, ev workqueue.Event, n int) {
	c.events.WithLabelValues(queue, ev.String()).Add(float64(n))
}

// Depth implements workqueue.Observer.
func (c *Collector) Depth(queue string, visible, inFlight int) {
	c.visible.WithLabelValues(queue).Set(float64(visible))
	c.inFlight.WithLabelValues(queue).Set(float64(inFlight))
}

// Forwarded records one dead-letter hand-off to sink.
func (c *Collector) Forwarded(sink string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.forwarded.WithLabelValues(sink, outcome).Inc()
}

// ObserveRead implements pebblestore.MetricsHook.
func (c *Collector) ObserveRead(elapsed time.Duration, bytes int) {
	c.storeRead.Observe(elapsed.Seconds())
	c.storeBytes.WithLabelValues("read").Add(float64(bytes))
}

// ObserveBatchCommit implements pebblestore.MetricsHook.
func (c *Collector) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	c.storeCommit.Observe(elapsed.Seconds())
	c.storeBytes.WithLabelValues("commit").Add(float64(bytes))
}
