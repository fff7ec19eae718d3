package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DexAtlas/internal/application/validation"
	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

type fakeReader struct {
	records []*trial.TrialRecord
	report  *validation.Report
	err     error
}

func (f *fakeReader) ReadCurated() ([]*trial.TrialRecord, error) { return f.records, f.err }

func (f *fakeReader) ReadReport() (*validation.Report, error) {
	if f.report == nil {
		return nil, errors.New(errors.ErrCodeReportMissing, "validation report not found")
	}
	return f.report, f.err
}

func sampleRecords() []*trial.TrialRecord {
	return []*trial.TrialRecord{
		{TrialID: "kim_2019_p5", RobOverallStd: ttypes.RobHigh},
		{TrialID: "li_2023_p3", RobOverallStd: ttypes.RobLow},
		{
			TrialID:         "park_2020_p4",
			RobOverallStd:   ttypes.RobSomeConcerns,
			ValidationFlags: trial.FlagList{"missing_bolus", "missing_n_total"},
			CriticalFlags:   trial.FlagList{"missing_n_total"},
		},
	}
}

func datasetEngine(h *DatasetHandler) *gin.Engine {
	r := gin.New()
	r.GET("/api/v1/trials", h.ListTrials)
	r.GET("/api/v1/trials/:id", h.GetTrial)
	r.GET("/api/v1/summary", h.Summary)
	r.GET("/api/v1/validation", h.Validation)
	r.GET("/api/v1/review-queue", h.ReviewQueue)
	return r
}

func doGet(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestDatasetHandler_ListTrials(t *testing.T) {
	r := datasetEngine(NewDatasetHandler(&fakeReader{records: sampleRecords()}, t.TempDir(), logging.NewNopLogger()))

	tests := []struct {
		query string
		ids   []string
		total int
	}{
		{"", []string{"kim_2019_p5", "li_2023_p3", "park_2020_p4"}, 3},
		{"?rob=low_risk", []string{"li_2023_p3"}, 1},
		{"?rob=High%20risk", []string{"kim_2019_p5"}, 1},
		{"?flag=missing_bolus", []string{"park_2020_p4"}, 1},
		{"?critical=false", []string{"kim_2019_p5", "li_2023_p3"}, 2},
		{"?page=2&page_size=2", []string{"park_2020_p4"}, 3},
		{"?page=9", []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := doGet(r, "/api/v1/trials"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			var page TrialPage
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
			ids := []string{}
			for _, rec := range page.Items {
				ids = append(ids, rec.TrialID)
			}
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, tt.total, page.Total)
			assert.Equal(t, strconv.Itoa(tt.total), w.Header().Get("X-Total-Count"))
		})
	}

	w := doGet(r, "/api/v1/trials?critical=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDatasetHandler_GetTrial(t *testing.T) {
	r := datasetEngine(NewDatasetHandler(&fakeReader{records: sampleRecords()}, t.TempDir(), logging.NewNopLogger()))

	w := doGet(r, "/api/v1/trials/park_2020_p4")
	require.Equal(t, http.StatusOK, w.Code)
	var rec trial.TrialRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, trial.FlagList{"missing_n_total"}, rec.CriticalFlags)

	w = doGet(r, "/api/v1/trials/ghost_2001_p1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(errors.ErrCodeNotFound), resp.Code)
}

func TestDatasetHandler_ArtifactsMissing(t *testing.T) {
	r := datasetEngine(NewDatasetHandler(&fakeReader{}, t.TempDir(), logging.NewNopLogger()))

	for _, path := range []string{"/api/v1/summary", "/api/v1/validation", "/api/v1/review-queue"} {
		w := doGet(r, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestDatasetHandler_ServesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary_overall.json"), []byte(`{"n_trials": 2}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "review_queue.csv"), []byte("trial_id\npark_2020_p4\n"), 0o644))
	report := &validation.Report{RunID: "run-1", GatePassed: true, NTrialsCurated: 2}
	r := datasetEngine(NewDatasetHandler(&fakeReader{report: report}, dir, logging.NewNopLogger()))

	w := doGet(r, "/api/v1/summary")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"n_trials": 2}`, w.Body.String())

	w = doGet(r, "/api/v1/review-queue")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "trial_id\npark_2020_p4\n", w.Body.String())

	w = doGet(r, "/api/v1/validation")
	require.Equal(t, http.StatusOK, w.Code)
	var got validation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, report.RunID, got.RunID)
	assert.True(t, got.GatePassed)
}

func TestDatasetHandler_InternalErrorMasked(t *testing.T) {
	r := datasetEngine(NewDatasetHandler(&fakeReader{err: os.ErrPermission}, t.TempDir(), logging.NewNopLogger()))
	w := doGet(r, "/api/v1/trials")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.NotContains(t, w.Body.String(), "permission")
}

func TestNewDatasetHandler_NilLogger(t *testing.T) {
	assert.Panics(t, func() { NewDatasetHandler(&fakeReader{}, "", nil) })
}

//Personal.AI order the ending
