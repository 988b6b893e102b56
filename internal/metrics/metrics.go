// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapping_http_requests_total",
		Help: "HTTP requests by status code",
	}, []string{"code"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapping_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	FeaturePagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapping_feature_pages_total",
		Help: "Total feature pages served",
	})
	FeatureRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapping_feature_rows_total",
		Help: "Total feature rows served",
	})
	TypeMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapping_type_mutations_total",
		Help: "Feature type mutations by action",
	}, []string{"action"})
	PopupCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapping_popup_cache_hits_total",
		Help: "Total popup fragment cache hits",
	})
	PopupCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mapping_popup_cache_misses_total",
		Help: "Total popup fragment cache misses",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(FeaturePagesTotal)
	prometheus.MustRegister(FeatureRowsTotal)
	prometheus.MustRegister(TypeMutationsTotal)
	prometheus.MustRegister(PopupCacheHitsTotal)
	prometheus.MustRegister(PopupCacheMissesTotal)
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(r *http.Request, status int, d time.Duration) {
	RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	RequestDurationMs.Observe(float64(d.Milliseconds()))
}

// Handler serves the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }
