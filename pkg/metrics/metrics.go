package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务指标，注册在独立 registry 上，测试可各自创建互不干扰
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	httpBodyBytes *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec

	moodSubmissions *prometheus.CounterVec
	uploadBytes     *prometheus.HistogramVec
	uploadCleanup   *prometheus.CounterVec
	sweepRemoved    prometheus.Counter

	rateLimitAllow *prometheus.CounterVec
	rateLimitDeny  *prometheus.CounterVec
}

// NewMetrics reg 为 nil 时新建并附带 go/process 采集器
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	}

	return &Metrics{
		registry: reg,

		httpRequests: counter("http_requests_total", "HTTP requests by route template and status", "method", "path", "status"),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP handling latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path"}),
		httpBodyBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_body_bytes",
			Help:    "Request and response body sizes",
			Buckets: prometheus.ExponentialBuckets(256, 8, 8),
		}, []string{"path", "direction"}),

		cacheLookups: counter("cache_lookups_total", "Cache lookups by area and outcome", "area", "outcome"),

		moodSubmissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mood_submissions_total",
				Help: "Mood submissions by outcome",
			},
			[]string{"result"},
		),
		uploadBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mood_upload_bytes",
				Help:    "Size of stored mood attachments in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"field"},
		),
		uploadCleanup: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mood_upload_cleanup_total",
				Help: "Best-effort removals of uploads left by failed submissions",
			},
			[]string{"result"},
		),
		sweepRemoved: f.NewCounter(
			prometheus.CounterOpts{
				Name: "mood_upload_sweep_removed_total",
				Help: "Orphaned uploads removed by the periodic sweep",
			},
		),

		rateLimitAllow: counter("rate_limit_allow_total", "Requests let through by the submission limiter", "route"),
		rateLimitDeny:  counter("rate_limit_deny_total", "Requests refused by the submission limiter", "route"),
	}
}

// Registry 暴露给测试与 /metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, took time.Duration, reqBytes, respBytes int64) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpLatency.WithLabelValues(method, path).Observe(took.Seconds())
	m.httpBodyBytes.WithLabelValues(path, "in").Observe(float64(reqBytes))
	m.httpBodyBytes.WithLabelValues(path, "out").Observe(float64(respBytes))
}

// RecordCacheLookup area 如 token、profile
func (m *Metrics) RecordCacheLookup(area string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(area, outcome).Inc()
}

// RecordSubmission result: accepted | rejected | failed
func (m *Metrics) RecordSubmission(result string) {
	m.moodSubmissions.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordUpload(field string, size int64) {
	m.uploadBytes.WithLabelValues(field).Observe(float64(size))
}

func (m *Metrics) RecordCleanup(ok bool) {
	if ok {
		m.uploadCleanup.WithLabelValues("removed").Inc()
		return
	}
	m.uploadCleanup.WithLabelValues("failed").Inc()
}

func (m *Metrics) RecordSweep(removed int) {
	m.sweepRemoved.Add(float64(removed))
}

// OnAllow / OnDeny 实现 middleware.MetricsObserver
func (m *Metrics) OnAllow(route, key string) { m.rateLimitAllow.WithLabelValues(route).Inc() }
func (m *Metrics) OnDeny(route, key string)  { m.rateLimitDeny.WithLabelValues(route).Inc() }
