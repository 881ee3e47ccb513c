package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	events         *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	backtests      *prometheus.CounterVec
	activeSessions prometheus.Gauge
	latency        *prometheus.HistogramVec
}

var (
	recorderOnce sync.Once
	recorder     *Recorder
)

// New returns the process-wide Prometheus metrics recorder. Collectors
// register against the default registry once.
func New() *Recorder {
	recorderOnce.Do(func() {
		recorder = newRecorder()
	})
	return recorder
}

func newRecorder() *Recorder {
	return &Recorder{
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocdesk_allocation_events_total",
				Help: "Total allocation events applied, by kind",
			},
			[]string{"kind"},
		),
		rejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocdesk_rejected_inputs_total",
				Help: "Inputs rejected by allocation validation, by reason",
			},
			[]string{"reason"},
		),
		backtests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocdesk_backtest_runs_total",
				Help: "Backtest runs by outcome",
			},
			[]string{"result"},
		),
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "allocdesk_active_sessions",
				Help: "Number of live allocation sessions",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "allocdesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvent records one applied allocation event.
func (r *Recorder) RecordEvent(kind string) {
	r.events.WithLabelValues(kind).Inc()
}

// RecordRejection records a rejected input.
func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

// RecordBacktest records a backtest run outcome.
func (r *Recorder) RecordBacktest(result string) {
	r.backtests.WithLabelValues(result).Inc()
}

// RecordActiveSessions records the current session count.
func (r *Recorder) RecordActiveSessions(n int) {
	r.activeSessions.Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
