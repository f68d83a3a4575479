// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sigauth"

// Result label values for verification outcomes.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Metrics holds the gateway collectors.
type Metrics struct {
	registry *prometheus.Registry

	verifications    *prometheus.CounterVec
	verifiedBody     prometheus.Histogram
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	registeredKeys   prometheus.Gauge
	verifierDisabled prometheus.Gauge
}

// New registers the gateway collectors, plus Go runtime and process
// collectors, on a fresh registry.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Signed request verifications by result and reason.",
		}, []string{"result", "reason"}),
		verifiedBody: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_body_bytes",
			Help:      "Size of request bodies buffered by accepted verifications.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by method and status.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		registeredKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_keys",
			Help:      "Number of public keys accepted by the verifier.",
		}),
		verifierDisabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "verification_disabled",
			Help:      "1 when signature verification is disabled and requests pass through.",
		}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.verifications,
		m.verifiedBody,
		m.requests,
		m.requestDuration,
		m.registeredKeys,
		m.verifierDisabled,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Accepted records a successful verification.
func (m *Metrics) Accepted(bodyBytes int64) {
	m.verifications.WithLabelValues(ResultAccepted, "ok").Inc()
	m.verifiedBody.Observe(float64(bodyBytes))
}

// Rejected records a failed verification with its reason label.
func (m *Metrics) Rejected(reason string) {
	m.verifications.WithLabelValues(ResultRejected, reason).Inc()
}

// Request records a served HTTP request.
func (m *Metrics) Request(method string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// SetVerifierState records how the verifier was configured at startup.
func (m *Metrics) SetVerifierState(enabled bool, keys int) {
	m.registeredKeys.Set(float64(keys))

	if enabled {
		m.verifierDisabled.Set(0)
	} else {
		m.verifierDisabled.Set(1)
	}
}
