package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DexAtlas/internal/application/validation"
	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DexAtlas/internal/interfaces/http/handlers"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

type stubReader struct{}

func (stubReader) ReadCurated() ([]*trial.TrialRecord, error) {
	return []*trial.TrialRecord{{TrialID: "li_2023_p3"}}, nil
}

func (stubReader) ReadReport() (*validation.Report, error) {
	return nil, errors.New(errors.ErrCodeReportMissing, "validation report not found")
}

func testRouter(t *testing.T) (*gin.Engine, prometheus.MetricsCollector, string) {
	t.Helper()
	dir := t.TempDir()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "dexatlas"}, logging.NewNopLogger())
	require.NoError(t, err)
	r := NewRouter(RouterConfig{
		Mode:           gin.TestMode,
		DatasetHandler: handlers.NewDatasetHandler(stubReader{}, dir, logging.NewNopLogger()),
		HealthHandler: handlers.NewHealthHandler("test",
			handlers.FileChecker{Label: "checksums", Path: filepath.Join(dir, "checksums.json")}),
		CORSOrigins:      []string{"https://docs.example.org"},
		Logger:           logging.NewNopLogger(),
		MetricsCollector: collector,
		Metrics:          prometheus.NewPipelineMetrics(collector),
	})
	return r, collector, dir
}

func request(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Origin", "https://docs.example.org")
	r.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Routes(t *testing.T) {
	r, _, dir := testRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checksums.json"), []byte(`{"trials_curated.json":"abc"}`), 0o644))

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/trials", http.StatusOK},
		{http.MethodGet, "/api/v1/trials/li_2023_p3", http.StatusOK},
		{http.MethodGet, "/api/v1/checksums", http.StatusOK},
		{http.MethodGet, "/api/v1/summary/by-rob", http.StatusNotFound},
		{http.MethodGet, "/api/v1/validation", http.StatusNotFound},
		{http.MethodGet, "/api/v1/linkage/coverage", http.StatusNotFound},
		{http.MethodPost, "/api/v1/trials", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v2/trials", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := request(r, tt.method, tt.path)
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, "https://docs.example.org", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestNewRouter_ReadinessWithoutArtifacts(t *testing.T) {
	r, _, _ := testRouter(t)
	assert.Equal(t, http.StatusServiceUnavailable, request(r, http.MethodGet, "/readyz").Code)
}

func TestNewRouter_RecordsRequestMetrics(t *testing.T) {
	r, _, _ := testRouter(t)
	request(r, http.MethodGet, "/api/v1/trials/li_2023_p3")

	w := request(r, http.MethodGet, "/metrics")
	assert.Contains(t, w.Body.String(),
		`dexatlas_http_requests_total{method="GET",path="/api/v1/trials/:id",status_code="200"} 1`)
}

func TestNewRouter_NilHandlers(t *testing.T) {
	r := NewRouter(RouterConfig{Mode: gin.TestMode})
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/api/v1/trials").Code)
}

//Personal.AI order the ending
