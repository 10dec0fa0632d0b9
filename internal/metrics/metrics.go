// Package metrics exposes Prometheus collectors for the viewer process.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stwalsh4118/vigil/internal/convergence"
	"github.com/stwalsh4118/vigil/internal/mirror"
	"github.com/stwalsh4118/vigil/internal/playback"
)

var mirrorStatuses = []mirror.Status{
	mirror.StatusDisabled,
	mirror.StatusConnecting,
	mirror.StatusConnected,
	mirror.StatusDegraded,
	mirror.StatusUnauthorized,
	mirror.StatusUnavailable,
}

// Metrics owns a registry and the collectors registered on it
type Metrics struct {
	registry *prometheus.Registry

	engineEvents   *prometheus.CounterVec
	playbackErrors *prometheus.CounterVec
	checks         *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		engineEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_engine_events_total",
			Help: "Playback engine events by type",
		}, []string{"type"}),
		playbackErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_playback_errors_total",
			Help: "Classified playback errors",
		}, []string{"error_type", "live"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_convergence_checks_total",
			Help: "Convergence checks by trigger",
		}, []string{"trigger"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_http_requests_total",
			Help: "Authoring API requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_http_request_duration_seconds",
			Help:    "Authoring API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.engineEvents,
		m.playbackErrors,
		m.checks,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEngineEvent counts an engine event. It is safe as an engine
// Listener.
func (m *Metrics) ObserveEngineEvent(ev playback.Event) {
	m.engineEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Err != nil {
		m.playbackErrors.WithLabelValues(ev.Err.Type.String(), strconv.FormatBool(ev.Err.Live)).Inc()
	}
}

// ObserveCheck counts a convergence check
func (m *Metrics) ObserveCheck(trigger convergence.Trigger) {
	m.checks.WithLabelValues(string(trigger)).Inc()
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// WatchMirror exports the mirror status as a one-hot gauge read at scrape time
func (m *Metrics) WatchMirror(mm mirror.Mirror) {
	for _, status := range mirrorStatuses {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "vigil_mirror_status",
			Help:        "Remote mirror connection status",
			ConstLabels: prometheus.Labels{"status": string(status)},
		}, func() float64 {
			if mm.Status() == status {
				return 1
			}
			return 0
		}))
	}
}

// WatchEngine exports live-mode gauges read from snapshot at scrape time
func (m *Metrics) WatchEngine(snapshot func() playback.Snapshot) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "vigil_live_mode",
			Help: "1 while the viewer plays the live source",
		}, func() float64 {
			if snapshot().Live {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "vigil_live_retries",
			Help: "Consecutive live source failures",
		}, func() float64 {
			return float64(snapshot().RetryCount)
		}),
	)
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
