// Package metrics exposes Prometheus instrumentation for keygate.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the keygate collectors and the private registry they are
// registered with.
type Metrics struct {
	registry *prometheus.Registry

	Registrations *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	KeysIssued    *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New creates a registry with the Go and process collectors plus the keygate
// metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_admin_registrations_total",
				Help: "Admin registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_admin_logins_total",
				Help: "Admin login attempts by outcome",
			},
			[]string{"outcome"},
		),
		KeysIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keygate_api_keys_issued_total",
				Help: "API key issuance attempts by outcome",
			},
			[]string{"outcome"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keygate_http_request_duration_seconds",
				Help:    "HTTP request latency by method, route pattern and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(m.Registrations, m.Logins, m.KeysIssued, m.HTTPDuration)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) ObserveRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveKeyIssued(outcome string) {
	m.KeysIssued.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request. route should be the router
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
