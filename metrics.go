package tsreplay

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the replay's Prometheus collectors: the Consumer Bridge
// sets RingFill on every pop, the pacing loop counts each dropped packet in
// Overflows and observes per-block drift in PacingErrorMS. They are
// instrumentation only: nothing about packet delivery depends on whether a
// caller ever scrapes them.
type Metrics struct {
	RingFill      prometheus.Gauge
	Overflows     prometheus.Counter
	PacingErrorMS prometheus.Histogram
}

// NewMetrics registers a fresh set of collectors, labeled with sessionID so
// multiple concurrent Replay instances in one process don't collide on
// metric names.
func NewMetrics(registry *prometheus.Registry, sessionID string) *Metrics {
	labels := prometheus.Labels{"session_id": sessionID}

	m := &Metrics{
		RingFill: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tsreplay_ring_fill_packets",
			Help:        "Number of packets currently buffered in the SPSC ring.",
			ConstLabels: labels,
		}),
		Overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tsreplay_ring_overflow_packets_total",
			Help:        "Total packets dropped because the ring was full.",
			ConstLabels: labels,
		}),
		PacingErrorMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "tsreplay_pacing_error_ms",
			Help:        "Observed drift between a block's nominal PCR duration and elapsed wall time.",
			ConstLabels: labels,
			Buckets:     []float64{1, 5, 10, 25, 50, 100, 250},
		}),
	}

	if registry != nil {
		registry.MustRegister(m.RingFill, m.Overflows, m.PacingErrorMS)
	}
	return m
}
