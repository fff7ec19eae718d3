package prometheus

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipelineMetrics(t *testing.T) (*PipelineMetrics, MetricsCollector) {
	c := newTestCollector(t)
	return NewPipelineMetrics(c), c
}

func TestPipelineMetrics_Build(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordBuild(42, map[string]int{"comparator_excluded": 3, "no_study_year": 1})

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, "test_records_built 42")
	assert.Contains(t, out, `test_records_excluded{reason="comparator_excluded"} 3`)
}

func TestPipelineMetrics_Validation(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordValidation(
		map[string]int{"bolus_out_of_range": 2, "timing_unclear": 5},
		map[string]bool{"bolus_out_of_range": true},
		2,
	)

	expected := `
# HELP test_validation_flags Records carrying each validation flag in the last run
# TYPE test_validation_flags gauge
test_validation_flags{critical="false",flag="timing_unclear"} 5
test_validation_flags{critical="true",flag="bolus_out_of_range"} 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Gatherer(), strings.NewReader(expected), "test_validation_flags"))
	assert.Contains(t, scrapeMetrics(t, c), "test_unresolved_critical_records 2")
}

func TestPipelineMetrics_StageAndRun(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordStage("extract", 250*time.Millisecond)
	m.RecordStage("extract", 2*time.Second)
	m.RecordRun("ok")
	m.RecordRun("blocked")
	m.RecordPublished("docs", 5)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_stage_duration_seconds_count{stage="extract"} 2`)
	assert.Contains(t, out, `test_runs_total{status="blocked"} 1`)
	assert.Contains(t, out, `test_artifacts_published_total{target="docs"} 5`)
}

func TestPipelineMetrics_HTTP(t *testing.T) {
	m, c := newTestPipelineMetrics(t)
	m.RecordHTTPRequest("GET", "/api/v1/trials", 200, 3*time.Millisecond)

	assert.Contains(t, scrapeMetrics(t, c), `test_http_requests_total{method="GET",path="/api/v1/trials",status_code="200"} 1`)
}

//Personal.AI order the ending
