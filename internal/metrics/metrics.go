package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mobile_payment"

// Metrics owns a private registry so tests can build as many as they like.
// Every recording method is safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	PaymentsCreatedTotal   *prometheus.CounterVec
	PaymentTransitions     *prometheus.CounterVec
	CallbacksTotal         *prometheus.CounterVec
	ProviderRequestsTotal  *prometheus.CounterVec
	LoginsTotal            *prometheus.CounterVec
	RefreshTokensPurged    prometheus.Counter
	HTTPRequestDuration    *prometheus.HistogramVec
	ProviderRequestLatency *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		PaymentsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Payments created, by gateway mode and outcome.",
		}, []string{"mode", "result"}),
		PaymentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_status_transitions_total",
			Help:      "Applied payment status transitions.",
		}, []string{"from", "to"}),
		CallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callbacks_total",
			Help:      "Inbound payment callbacks by result.",
		}, []string{"result"}),
		ProviderRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound provider calls by operation and result code.",
		}, []string{"operation", "code"}),
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		RefreshTokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_purged_total",
			Help:      "Expired refresh token registry entries removed.",
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ProviderRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_latency_seconds",
			Help:      "Latency of outbound provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		m.PaymentsCreatedTotal,
		m.PaymentTransitions,
		m.CallbacksTotal,
		m.ProviderRequestsTotal,
		m.LoginsTotal,
		m.RefreshTokensPurged,
		m.HTTPRequestDuration,
		m.ProviderRequestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PaymentCreated(mode string, ok bool) {
	if m == nil {
		return
	}
	m.PaymentsCreatedTotal.WithLabelValues(mode, result(ok)).Inc()
}

func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.PaymentTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Callback(accepted bool) {
	if m == nil {
		return
	}
	label := "accepted"
	if !accepted {
		label = "rejected"
	}
	m.CallbacksTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) ProviderRequest(operation, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(operation, code).Inc()
	m.ProviderRequestLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Login records a login attempt; result is a short label such as
// "success", "invalid_credentials" or "inactive".
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) TokensPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RefreshTokensPurged.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
