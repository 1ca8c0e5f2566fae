package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for cart operations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// CartMetrics records cart and wishlist operation timings plus lock contention.
type CartMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	lockWait *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_total",
		Help: "Cart operations by outcome.",
	}, []string{"op", "outcome"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_lock_wait_seconds",
		Help:    "Time spent waiting for a line-item lock.",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"backend"})
	reg.MustRegister(duration, total, lockWait)
	return &CartMetrics{
		duration: duration,
		total:    total,
		lockWait: lockWait,
	}
}

// ObserveOperation records the duration and outcome for op.
func (c *CartMetrics) ObserveOperation(op, outcome string, took time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	op = normalizeLabel(op)
	c.duration.WithLabelValues(op).Observe(took.Seconds())
	c.total.WithLabelValues(op, normalizeLabel(outcome)).Inc()
}

// ObserveLockWait records how long a caller waited for the line lock.
func (c *CartMetrics) ObserveLockWait(backend string, waited time.Duration) {
	if c == nil || c.lockWait == nil {
		return
	}
	c.lockWait.WithLabelValues(normalizeLabel(backend)).Observe(waited.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
