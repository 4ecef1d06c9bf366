package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue 从 registry 中读取计数器的当前值
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMonitorMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(MonitorMiddleware(m))
	r.GET("/uploads/:name", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, name := range []string{"a.jpg", "b.jpg"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2.0, counterValue(t, m.Registry(), "http_requests_total",
		map[string]string{"method": "GET", "path": "/uploads/:name", "status": "200"}))
}

func TestBusinessCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSubmission("accepted")
	m.RecordSubmission("accepted")
	m.RecordSubmission("failed")
	m.RecordCleanup(true)
	m.RecordSweep(3)
	m.OnDeny("/api/mood", "ip:1.2.3.4")

	reg := m.Registry()
	assert.Equal(t, 2.0, counterValue(t, reg, "mood_submissions_total", map[string]string{"result": "accepted"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "mood_submissions_total", map[string]string{"result": "failed"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "mood_upload_cleanup_total", map[string]string{"result": "removed"}))
	assert.Equal(t, 3.0, counterValue(t, reg, "mood_upload_sweep_removed_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "rate_limit_deny_total", map[string]string{"route": "/api/mood"}))
}

func TestHandlerExposesRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(nil)
	m.RecordSubmission("accepted")

	r := gin.New()
	r.GET("/metrics", m.Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `mood_submissions_total{result="accepted"} 1`))
}
