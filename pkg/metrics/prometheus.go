package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rowsProcessed *prometheus.CounterVec
	anomalies     *prometheus.CounterVec
	alertsEmitted *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastZScore    *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		rowsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netflow_rows_processed_total",
				Help: "Daily netflow rows run through the detector",
			},
			[]string{"series"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netflow_anomalies_total",
				Help: "New anomalies surfaced after deduplication",
			},
			[]string{"polarity"},
		),
		alertsEmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netflow_alerts_emitted_total",
				Help: "Alerts delivered per sink",
			},
			[]string{"sink"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastZScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netflow_last_zscore",
				Help: "Z-score of the most recent day with a defined value",
			},
			[]string{"series"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRowsProcessed(series string, n int) {
	r.rowsProcessed.WithLabelValues(series).Add(float64(n))
}

func (r *Recorder) RecordAnomalies(polarity string, n int) {
	r.anomalies.WithLabelValues(polarity).Add(float64(n))
}

func (r *Recorder) RecordAlertsEmitted(sink string, n int) {
	r.alertsEmitted.WithLabelValues(sink).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastZScore(series string, z float64) {
	r.lastZScore.WithLabelValues(series).Set(z)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordRowsProcessed(string, int)  {}
func (Nop) RecordAnomalies(string, int)      {}
func (Nop) RecordAlertsEmitted(string, int)  {}
func (Nop) RecordError(string)               {}
func (Nop) RecordLastZScore(string, float64) {}
func (Nop) RecordLatency(string, float64)    {}
