package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolveRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_resolve_requests_total",
		Help: "Total resolver calls by hierarchy level",
	}, []string{"level"})
	ResolveDegradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_resolve_degraded_total",
		Help: "Total resolver results served with at least one failed source or a literal fallback",
	}, []string{"level"})
	ResolveDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "locapi_resolve_duration_ms",
		Help:    "Resolver call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000, 30000},
	}, []string{"level"})
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_backend_requests_total",
		Help: "Total backend REST requests by endpoint",
	}, []string{"endpoint"})
	BackendFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_backend_fail_total",
		Help: "Total backend REST failures (transport, non-2xx, decode)",
	}, []string{"endpoint"})
	BackendDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "locapi_backend_duration_ms",
		Help:    "Backend REST call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000, 30000},
	}, []string{"endpoint"})
	SourceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_source_requests_total",
		Help: "Total public dataset fetches",
	}, []string{"source"})
	SourceFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_source_fail_total",
		Help: "Total public dataset fetch failures",
	}, []string{"source"})
	SourceDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "locapi_source_duration_ms",
		Help:    "Public dataset fetch duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 5000, 30000},
	}, []string{"source"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_cache_hits_total",
		Help: "Total cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_cache_misses_total",
		Help: "Total cache misses by tier",
	}, []string{"tier"})
	CacheErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locapi_cache_errors_total",
		Help: "Total cache read/write errors by tier",
	}, []string{"tier"})
	DatasetBuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locapi_dataset_builds_total",
		Help: "Total network builds of the states/districts dataset",
	})
)

func init() {
	prometheus.MustRegister(ResolveRequestsTotal)
	prometheus.MustRegister(ResolveDegradedTotal)
	prometheus.MustRegister(ResolveDurationMs)
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendFailTotal)
	prometheus.MustRegister(BackendDurationMs)
	prometheus.MustRegister(SourceRequestsTotal)
	prometheus.MustRegister(SourceFailTotal)
	prometheus.MustRegister(SourceDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheErrorsTotal)
	prometheus.MustRegister(DatasetBuildsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：在主入口挂载到 API_BASE/metrics，供抓取解析器与各数据源的成功率与耗时。
func Handler() http.Handler { return promhttp.Handler() }
