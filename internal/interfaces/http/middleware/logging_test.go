package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/prometheus"
)

func loggedEngine(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), RequestLogging(logging.NewLoggerFromCore(core), DefaultLoggingConfig()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/trials/:id", func(c *gin.Context) {
		if c.Param("id") == "boom" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNotFound)
	})
	r.GET("/api/v1/trials", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	return r, logs
}

func get(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestLogging_Levels(t *testing.T) {
	r, logs := loggedEngine(t)

	get(r, "/api/v1/trials?rob=low_risk", nil)
	get(r, "/api/v1/trials/missing", nil)
	get(r, "/api/v1/trials/boom", nil)
	get(r, "/healthz", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "/api/v1/trials?rob=low_risk", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.EqualValues(t, 500, entries[2].ContextMap()["status"])
}

func TestRequestID(t *testing.T) {
	r, logs := loggedEngine(t)

	w := get(r, "/api/v1/trials", map[string]string{RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", logs.All()[0].ContextMap()["request_id"])

	w = get(r, "/api/v1/trials", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestMetrics_RouteTemplates(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "dexatlas"}, logging.NewNopLogger())
	require.NoError(t, err)
	r := gin.New()
	r.Use(Metrics(prometheus.NewPipelineMetrics(collector)))
	r.GET("/api/v1/trials/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	get(r, "/api/v1/trials/li_2023_p3", nil)
	get(r, "/api/v1/trials/park_2020_p4", nil)
	get(r, "/nope", nil)

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.True(t, strings.Contains(body,
		`dexatlas_http_requests_total{method="GET",path="/api/v1/trials/:id",status_code="200"} 2`), body)
	assert.Contains(t, body, `path="unmatched",status_code="404"} 1`)
}

//Personal.AI order the ending
