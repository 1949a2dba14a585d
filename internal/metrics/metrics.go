// Package metrics exports history activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/sketchstorm/internal/history"
)

// Collector records history activity. It implements history.Observer.
type Collector struct {
	captures    prometheus.Counter
	snapshotLen prometheus.Histogram
	navigations *prometheus.CounterVec
	undoDepth   prometheus.Gauge
	redoDepth   prometheus.Gauge
}

// New creates a Collector and registers its metrics with reg.
// A nil reg leaves the metrics unregistered.
func New(reg prometheus.Registerer, namespace string) *Collector {
	f := promauto.With(reg)
	return &Collector{
		captures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "captures_total",
			Help:      "Total number of scene snapshots recorded.",
		}),
		snapshotLen: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "snapshot_bytes",
			Help:      "Size of recorded snapshots.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
		navigations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "navigations_total",
			Help:      "Undo and redo operations by outcome.",
		}, []string{"direction", "outcome"}),
		undoDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "undo_depth",
			Help:      "Entries on the undo stack.",
		}),
		redoDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "redo_depth",
			Help:      "Entries on the redo stack.",
		}),
	}
}

// ObserveCapture implements history.Observer.
func (c *Collector) ObserveCapture(bytes int) {
	c.captures.Inc()
	c.snapshotLen.Observe(float64(bytes))
}

// ObserveNavigation implements history.Observer.
func (c *Collector) ObserveNavigation(direction, outcome string) {
	c.navigations.WithLabelValues(direction, outcome).Inc()
}

// ObserveDepth implements history.Observer.
func (c *Collector) ObserveDepth(undo, redo int) {
	c.undoDepth.Set(float64(undo))
	c.redoDepth.Set(float64(redo))
}

var _ history.Observer = (*Collector)(nil)
