package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ecowitt2mqtt"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingest pipeline.
type Metrics struct {
	PayloadsReceived prometheus.Counter
	PayloadsRejected prometheus.Counter
	DataPoints       *prometheus.CounterVec // labels: outcome={calculated,empty,raw}

	ReadingsPublished *prometheus.CounterVec   // labels: sink
	PublishErrors     *prometheus.CounterVec   // labels: sink
	PublishDuration   *prometheus.HistogramVec // labels: sink

	ProcessingDuration prometheus.Histogram
	ConfigReloads      *prometheus.CounterVec // labels: outcome={success,error}
	PublishersReady    prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		PayloadsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_received_total",
			Help:      help("Total gateway payloads accepted."),
		}),
		PayloadsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_rejected_total",
			Help:      help("Total gateway requests rejected as malformed."),
		}),
		DataPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_points_total",
			Help:      help("Data points produced, by outcome."),
		}, []string{"outcome"}),
		ReadingsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_published_total",
			Help:      help("Readings delivered, by sink."),
		}, []string{"sink"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      help("Failed publish attempts, by sink."),
		}, []string{"sink"}),
		PublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      help("Time to deliver one reading, by sink."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"sink"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      help("Duration of a complete calculate-and-publish cycle."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		ConfigReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      help("Configuration reloads, by outcome."),
		}, []string{"outcome"}),
		PublishersReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publishers_ready",
			Help:      help("1 when every publisher is connected, 0 otherwise."),
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.PayloadsReceived,
		m.PayloadsRejected,
		m.DataPoints,
		m.ReadingsPublished,
		m.PublishErrors,
		m.PublishDuration,
		m.ProcessingDuration,
		m.ConfigReloads,
		m.PublishersReady,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
