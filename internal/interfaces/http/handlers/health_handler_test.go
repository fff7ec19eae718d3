package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                  { return s.name }
func (s stubChecker) Check(_ context.Context) error { return s.err }

func healthEngine(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	return r
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := httptest.NewRecorder()
	healthEngine(NewHealthHandler("v1.2.3", stubChecker{"x", fmt.Errorf("down")})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "validation_report.json")

	tests := []struct {
		name     string
		checkers []HealthChecker
		setup    func()
		code     int
		status   string
	}{
		{name: "no checkers", code: http.StatusOK, status: "ready"},
		{
			name:     "artifact missing",
			checkers: []HealthChecker{FileChecker{Label: "validation_report", Path: report}},
			code:     http.StatusServiceUnavailable,
			status:   "not_ready",
		},
		{
			name:     "artifact present",
			checkers: []HealthChecker{FileChecker{Label: "validation_report", Path: report}, stubChecker{name: "other"}},
			setup:    func() { require.NoError(t, os.WriteFile(report, []byte("{}"), 0o644)) },
			code:     http.StatusOK,
			status:   "ready",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			w := httptest.NewRecorder()
			healthEngine(NewHealthHandler("dev", tt.checkers...)).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.code, w.Code)
			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Components, len(tt.checkers))
		})
	}
}

//Personal.AI order the ending
