// Package metrics holds the process-wide Prometheus collectors.
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
	ResponsesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_responses_submitted_total",
		Help: "Responses accepted, by completion state.",
	}, []string{"completed"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_notifications_total",
		Help: "Notifier calls, by kind and result.",
	}, []string{"kind", "result"})

	StatsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_stats_cache_total",
		Help: "Statistics cache lookups, by result.",
	}, []string{"result"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "survey_http_request_duration_seconds",
		Help:    "HTTP latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func Handler() http.Handler { return promhttp.Handler() }

// Instrument records request latency keyed by the matched chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
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
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
