// Package metrics owns the Prometheus registry and the collectors the services report to
//
// Every recording method is safe on a nil *Metrics so tests and tools can skip wiring it
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shapeshift"

// Metrics holds the registry and its collectors
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	submissions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec

	creditsDebited  prometheus.Counter
	creditsRefunded prometheus.Counter
	refundsSkipped  *prometheus.CounterVec

	pollerLeased    prometheus.Counter
	pollerReconcile *prometheus.CounterVec
	pollerInflight  prometheus.Gauge
}

// New builds a private registry with runtime collectors attached
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		providerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "requests_total",
			Help: "Generation provider calls by operation and HTTP status (0 for transport errors)",
		}, []string{"op", "status"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "provider", Name: "request_duration_seconds",
			Help: "Generation provider latency including retries", Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		}, []string{"op"}),

		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generation", Name: "submissions_total",
			Help: "Accepted generation submissions by kind",
		}, []string{"kind"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generation", Name: "outcomes_total",
			Help: "Terminal generation outcomes by kind and status",
		}, []string{"kind", "status"}),

		creditsDebited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "credits_debited_total",
			Help: "Credits debited for confirmed generations",
		}),
		creditsRefunded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "credits_refunded_total",
			Help: "Credits refunded for failed generations",
		}),
		refundsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "refunds_skipped_total",
			Help: "Refund attempts skipped as duplicates, by guard",
		}, []string{"guard"}),

		pollerLeased: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "poller", Name: "leased_total",
			Help: "Tasks leased by the poller",
		}),
		pollerReconcile: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "poller", Name: "reconciled_total",
			Help: "Poller reconcile results by outcome",
		}, []string{"outcome"}),
		pollerInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "poller", Name: "inflight",
			Help: "Tasks currently being reconciled",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records request counts and latency keyed by the chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ProviderCall records one logical provider call
func (m *Metrics) ProviderCall(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.providerDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Submitted counts an accepted submission
func (m *Metrics) Submitted(kind string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
}

// Outcome counts a task reaching a terminal status
func (m *Metrics) Outcome(kind, status string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, status).Inc()
}

// Debited adds confirmed usage
func (m *Metrics) Debited(credits int) {
	if m == nil || credits <= 0 {
		return
	}
	m.creditsDebited.Add(float64(credits))
}

// Refunded adds a written refund
func (m *Metrics) Refunded(credits int) {
	if m == nil || credits <= 0 {
		return
	}
	m.creditsRefunded.Add(float64(credits))
}

// RefundSkipped counts a duplicate refund stopped by guard ("redis" or "ledger")
func (m *Metrics) RefundSkipped(guard string) {
	if m == nil {
		return
	}
	m.refundsSkipped.WithLabelValues(guard).Inc()
}

// Leased counts tasks picked up by one poller tick
func (m *Metrics) Leased(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pollerLeased.Add(float64(n))
}

// Reconciled counts one poller reconcile by outcome
func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.pollerReconcile.WithLabelValues(outcome).Inc()
}

// Inflight moves the in-progress gauge by delta
func (m *Metrics) Inflight(delta int) {
	if m == nil {
		return
	}
	m.pollerInflight.Add(float64(delta))
}
