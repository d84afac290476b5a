// Package metrics exposes Prometheus collectors for the inference service.
//
// All methods are safe on a nil *Metrics, so components can take an
// optional collector set without guarding every call.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecosight"

// Metrics is the collector set of one service instance.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	detections    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	batchSize     prometheus.Histogram
	modelsLoaded  prometheus.Gauge
	loadAttempts  *prometheus.CounterVec
	streamClients prometheus.Gauge
}

// New creates a collector set on a private registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "detections_total",
				Help:      "Successful detections by class and priority.",
			},
			[]string{"class", "priority"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "failures_total",
				Help:      "Failed pipeline runs by stage and error kind.",
			},
			[]string{"stage", "kind"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"stage"},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "batch_size",
				Help:      "Number of clips per batch request.",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		modelsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "models",
				Name:      "loaded",
				Help:      "1 once models are loaded and serving.",
			},
		),
		loadAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "models",
				Name:      "load_attempts_total",
				Help:      "Model load attempts by result.",
			},
			[]string{"result"},
		),
		streamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "clients",
				Help:      "Connected WebSocket stream clients.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.detections,
		m.failures,
		m.stageDuration,
		m.batchSize,
		m.modelsLoaded,
		m.loadAttempts,
		m.streamClients,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format. A nil *Metrics serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts one HTTP response.
func (m *Metrics) ObserveRequest(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveDetection counts one successful detection.
func (m *Metrics) ObserveDetection(class, priority string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(class, priority).Inc()
}

// ObserveFailure counts one failed run.
func (m *Metrics) ObserveFailure(stage, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage, kind).Inc()
}

// ObserveStage records the duration of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveBatch records the size of one batch.
func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}

// ObserveLoad records a model load attempt.
func (m *Metrics) ObserveLoad(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.loadAttempts.WithLabelValues("error").Inc()
		return
	}
	m.loadAttempts.WithLabelValues("ok").Inc()
	m.modelsLoaded.Set(1)
}

// StreamConnected adjusts the connected stream client gauge by delta.
func (m *Metrics) StreamConnected(delta int) {
	if m == nil {
		return
	}
	m.streamClients.Add(float64(delta))
}
