package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics
var (
	fetchSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rrdp_fetch_success_total",
		Help: "Total number of fetch cycles that produced an object set",
	})
	fetchNotModifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rrdp_fetch_not_modified_total",
		Help: "Total number of fetch cycles that found the snapshot unchanged",
	})
	fetchFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rrdp_fetch_failure_total",
		Help: "Total number of fetch cycles that failed on remote data or transport",
	})
	fetchTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rrdp_fetch_timeout_total",
		Help: "Total number of fetch cycles aborted by a timeout",
	})
	lastSnapshotSerial = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rrdp_last_snapshot_serial",
		Help: "Serial of the last successfully consumed snapshot",
	})
	objectCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rrdp_object_count",
		Help: "Number of objects in the last successfully consumed snapshot",
	})
	collisionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rrdp_collision_count",
		Help: "Duplicate-URI collisions discarded from the last consumed snapshot",
	})
)

// PrometheusReporter implements the mirror service's Reporter interface.
type PrometheusReporter struct{}

// NewPrometheusReporter creates a reporter backed by the package metrics.
func NewPrometheusReporter() *PrometheusReporter {
	return &PrometheusReporter{}
}

// Success records a completed cycle and the shape of its object set.
func (r *PrometheusReporter) Success(serial uint64, objects, collisions int) {
	fetchSuccessTotal.Inc()
	lastSnapshotSerial.Set(float64(serial))
	objectCount.Set(float64(objects))
	collisionCount.Set(float64(collisions))
}

// NotModified records a cycle that found nothing new.
func (r *PrometheusReporter) NotModified() {
	fetchNotModifiedTotal.Inc()
}

// Failure records a structural or fatal cycle failure.
func (r *PrometheusReporter) Failure() {
	fetchFailureTotal.Inc()
}

// Timeout records an aborted cycle.
func (r *PrometheusReporter) Timeout() {
	fetchTimeoutTotal.Inc()
}

// WireUpHttpMetrics registers the /metrics endpoint on the default mux.
func (r *PrometheusReporter) WireUpHttpMetrics() {
	http.Handle("/metrics", promhttp.Handler())
}
