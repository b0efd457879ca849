// Package metrics provides Prometheus instrumentation for brokerdesk.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route pattern, and status bucket.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdesk",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status class.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route pattern.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brokerdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AccessDecisionsTotal counts authorization decisions by operation and outcome.
	AccessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdesk",
			Name:      "access_decisions_total",
			Help:      "Authorization decisions by operation and result (allow/deny).",
		},
		[]string{"operation", "result"},
	)

	// QuotaReservationsTotal counts staff/client slot reservations by outcome.
	QuotaReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdesk",
			Name:      "quota_reservations_total",
			Help:      "Quota reservations by resource and result.",
		},
		[]string{"resource", "result"},
	)

	// QuotaReleasesTotal counts released staff/client slots.
	QuotaReleasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdesk",
			Name:      "quota_releases_total",
			Help:      "Quota slots released by resource.",
		},
		[]string{"resource"},
	)

	// ReconcileCorrectionsTotal counts usage counters corrected by reconciliation.
	ReconcileCorrectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdesk",
			Name:      "quota_reconcile_corrections_total",
			Help:      "Usage counters found drifted and rewritten by reconciliation.",
		},
		[]string{"resource"},
	)

	// ReconcileRunsTotal counts per-broker reconciliation runs by result.
	ReconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brokerdesk",
			Name:      "quota_reconcile_runs_total",
			Help:      "Per-broker reconciliation runs by result (ok/skipped/error).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AccessDecisionsTotal,
		QuotaReservationsTotal,
		QuotaReleasesTotal,
		ReconcileCorrectionsTotal,
		ReconcileRunsTotal,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records request metrics keyed by chi route pattern, not raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, route, statusBucket(rec.status)).Inc()
	})
}

// Handler returns the Prometheus scrape handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
