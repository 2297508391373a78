// Package metrics exposes HelixDesk counters in Prometheus exposition format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "helixdesk"

// OTP outcomes.
const (
	OTPIssued   = "issued"
	OTPDispatch = "dispatch_failed"
	OTPVerified = "verified"
	OTPInvalid  = "invalid"
	OTPLocked   = "locked"
)

type Metrics struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	otpEvents       *prometheus.CounterVec
	sessionRefresh  *prometheus.CounterVec
	ticketsCreated  prometheus.Counter
	wsConnections   prometheus.Gauge
	auditWriteFails prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:     reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		otpEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_events_total",
			Help:      "One-time code issuance and verification outcomes.",
		}, []string{"outcome"}),
		sessionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_refresh_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"result"}),
		ticketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Tickets created.",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open live event connections.",
		}),
		auditWriteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit entries that could not be persisted.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.otpEvents,
		m.sessionRefresh,
		m.ticketsCreated,
		m.wsConnections,
		m.auditWriteFails,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route string, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) OTP(outcome string) {
	if m == nil {
		return
	}
	m.otpEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "ok"
	}
	m.sessionRefresh.WithLabelValues(result).Inc()
}

func (m *Metrics) TicketCreated() {
	if m == nil {
		return
	}
	m.ticketsCreated.Inc()
}

func (m *Metrics) WebsocketOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Metrics) WebsocketClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}

func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditWriteFails.Inc()
}
