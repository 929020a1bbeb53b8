// Package metrics exposes Prometheus collectors for booking operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests can build as many as they like.
type Recorder struct {
	registry          *prometheus.Registry
	handler           http.Handler
	operationDuration *prometheus.HistogramVec
	operationTotal    *prometheus.CounterVec
	lockWait          *prometheus.HistogramVec
	requestDuration   *prometheus.HistogramVec
}

// New registers the booking collectors.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roombooking",
		Name:      "operation_duration_seconds",
		Help:      "Duration of booking operations in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	operationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roombooking",
		Name:      "operations_total",
		Help:      "Booking operations by outcome",
	}, []string{"operation", "outcome"})

	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roombooking",
		Name:      "room_lock_wait_seconds",
		Help:      "Time spent waiting for a room lock",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
	}, []string{"acquired"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roombooking",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	registry.MustRegister(
		operationDuration,
		operationTotal,
		lockWait,
		requestDuration,
		prometheus.NewGoCollector(),
	)

	return &Recorder{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		operationDuration: operationDuration,
		operationTotal:    operationTotal,
		lockWait:          lockWait,
		requestDuration:   requestDuration,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveOperation records one booking operation and its outcome.
func (r *Recorder) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	r.operationTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveLockWait records how long a caller waited for a room lock.
func (r *Recorder) ObserveLockWait(elapsed time.Duration, acquired bool) {
	if r == nil {
		return
	}
	r.lockWait.WithLabelValues(strconv.FormatBool(acquired)).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records request latency by route pattern.
func (r *Recorder) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
