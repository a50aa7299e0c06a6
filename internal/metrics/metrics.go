// Package metrics exposes Prometheus counters for the client's API calls,
// realtime traffic and reconciliation work. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitroom"

// Metrics holds the client's collectors.
type Metrics struct {
	apiRequests   *prometheus.CounterVec
	apiDuration   *prometheus.HistogramVec
	events        *prometheus.CounterVec
	refetches     *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "REST calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		apiDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "REST call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Realtime events received by name.",
		}, []string{"event"}),
		refetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "refetches_total",
			Help:      "Full group re-fetches by triggering reason.",
		}, []string{"reason"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ui",
			Name:      "notifications_total",
			Help:      "Notifications surfaced to the user by level.",
		}, []string{"level"}),
	}
}

// ObserveRequest records one REST call.
func (m *Metrics) ObserveRequest(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(operation, outcome).Inc()
	m.apiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RealtimeEvent records one inbound realtime event.
func (m *Metrics) RealtimeEvent(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

// Refetch records one full group re-fetch.
func (m *Metrics) Refetch(reason string) {
	if m == nil {
		return
	}
	m.refetches.WithLabelValues(reason).Inc()
}

// Notification records one surfaced notification.
func (m *Metrics) Notification(level string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(level).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
