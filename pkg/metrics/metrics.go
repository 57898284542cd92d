// Package metrics exposes shredding progress as Prometheus metrics.
//
// # Overview
//
// A Collector owns one set of collectors registered on a caller supplied
// registry, so tests and embedded pipelines never touch the global one:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewCollector(reg)
//	m.DocumentAccepted("project")
//	m.BatchFlushed(rows, bytes, timer.Stop())
//
// # Metric Types
//
// Counter: documents, rejections, batches and bytes written
// Histogram: rows per batch and flush latency
// Gauge: current throughput in rows per second
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "shred"

// Collector records pipeline progress. It is safe for concurrent use.
type Collector struct {
	documents    *prometheus.CounterVec // Documents seen, by mode and status
	errors       *prometheus.CounterVec // Rejected documents, by error type
	batches      prometheus.Counter     // Batches handed to the sink
	batchRows    prometheus.Histogram   // Rows per batch
	flushLatency prometheus.Histogram   // Time to finish and write a batch
	bytesWritten prometheus.Counter     // Bytes handed to the output
	throughput   prometheus.Gauge       // Rows per second since the last flush
	tracker      *ThroughputTracker     // Feeds the throughput gauge
	startTime    time.Time              // Collector creation time
}

// NewCollector creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is useful when metrics are disabled.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_total",
				Help:      "Total number of documents read, by ingest mode and outcome",
			},
			[]string{"mode", "status"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "document_errors_total",
				Help:      "Total number of rejected documents by error type",
			},
			[]string{"type"},
		),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "batches_total",
			Help:      "Total number of record batches written",
		}),
		batchRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "batch_rows",
			Help:      "Rows per written record batch",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8), // 16 .. 262144
		}),
		flushLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "flush_latency_seconds",
			Help:      "Time to finish a batch and write it to the sink",
			Buckets: []float64{
				0.001, // 1ms - small batches to memory
				0.01,  // 10ms
				0.1,   // 100ms - compressed columnar output
				1,     // 1s - large batches
				10,    // 10s - slow storage
			},
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "output_bytes_total",
			Help:      "Total number of bytes written to the output",
		}),
		throughput: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "throughput_rows_per_second",
			Help:      "Rows per second over the last batch",
		}),
		startTime: time.Now(),
	}
	c.tracker = NewThroughputTracker(c.throughput)
	return c
}

// DocumentAccepted counts a document that became a row.
func (c *Collector) DocumentAccepted(mode string) {
	c.documents.WithLabelValues(mode, "accepted").Inc()
}

// DocumentRejected counts a document that failed to shred.
func (c *Collector) DocumentRejected(mode, errType string) {
	c.documents.WithLabelValues(mode, "rejected").Inc()
	c.errors.WithLabelValues(errType).Inc()
}

// BatchFlushed records one written batch. bytes is the growth of the
// output since the previous batch.
func (c *Collector) BatchFlushed(rows int64, bytes int64, latency time.Duration) {
	c.batches.Inc()
	c.batchRows.Observe(float64(rows))
	c.flushLatency.Observe(latency.Seconds())
	if bytes > 0 {
		c.bytesWritten.Add(float64(bytes))
	}
	c.tracker.Increment(rows)
	c.tracker.GetAndReset()
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (rows per second) over time windows
// and reports it to a gauge. Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows since last reset
	lastReset time.Time // Time of last reset
	gauge     prometheus.Gauge
}

// NewThroughputTracker creates a tracker reporting to gauge.
func NewThroughputTracker(gauge prometheus.Gauge) *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), gauge: gauge}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second),
// updates the gauge, resets the counter, and returns the throughput.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	t.gauge.Set(throughput)
	return throughput
}
