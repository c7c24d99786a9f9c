package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TablesLoaded counts successful loads by where the normalized rows came from.
	TablesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_tables_loaded_total",
			Help: "Number of uploaded tables loaded, by normalize source (parsed or cache)",
		},
		[]string{"source"},
	)

	LoadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_load_failures_total",
			Help: "Number of uploads rejected as not tabular",
		},
	)

	Advisories = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_advisories_total",
			Help: "Non-fatal advisories raised while loading tables and computing views",
		},
		[]string{"kind"},
	)

	ViewsComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_views_computed_total",
			Help: "Number of filter/sort passes computed",
		},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_exports_total",
			Help: "Number of exports served, by format and scope",
		},
		[]string{"format", "scope"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insights_active_sessions",
			Help: "Number of sessions currently holding a table",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Middleware records request count, latency and in-flight gauge. Routes are
// labelled by chi's matched pattern to keep session IDs out of the labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
