package prometheus

import (
	"strconv"
	"time"
)

// PipelineMetrics holds the metrics of curation runs and the preview API.
type PipelineMetrics struct {
	RunsTotal          CounterVec
	RecordsBuilt       GaugeVec
	RecordsExcluded    GaugeVec
	FlagsTotal         GaugeVec
	UnresolvedCritical GaugeVec
	StageDuration      HistogramVec
	ArtifactsPublished CounterVec
	HTTPRequestsTotal  CounterVec
	HTTPDuration       HistogramVec
}

var (
	DefaultStageDurationBuckets = []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300}
	DefaultHTTPDurationBuckets  = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
)

// NewPipelineMetrics registers the pipeline metrics on collector.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	return &PipelineMetrics{
		RunsTotal:          collector.RegisterCounter("runs_total", "Curation runs by outcome", "status"),
		RecordsBuilt:       collector.RegisterGauge("records_built", "Trial records built in the last run"),
		RecordsExcluded:    collector.RegisterGauge("records_excluded", "Table rows excluded in the last run", "reason"),
		FlagsTotal:         collector.RegisterGauge("validation_flags", "Records carrying each validation flag in the last run", "flag", "critical"),
		UnresolvedCritical: collector.RegisterGauge("unresolved_critical_records", "Records with unresolved critical flags in the last run"),
		StageDuration:      collector.RegisterHistogram("stage_duration_seconds", "Pipeline stage duration", DefaultStageDurationBuckets, "stage"),
		ArtifactsPublished: collector.RegisterCounter("artifacts_published_total", "Artifacts copied or uploaded", "target"),
		HTTPRequestsTotal:  collector.RegisterCounter("http_requests_total", "Preview API requests", "method", "path", "status_code"),
		HTTPDuration:       collector.RegisterHistogram("http_request_duration_seconds", "Preview API request duration", DefaultHTTPDurationBuckets, "method", "path"),
	}
}

func (m *PipelineMetrics) RecordStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *PipelineMetrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordBuild sets the build gauges.  excluded is keyed by reason.
func (m *PipelineMetrics) RecordBuild(built int, excluded map[string]int) {
	m.RecordsBuilt.WithLabelValues().Set(float64(built))
	for reason, n := range excluded {
		m.RecordsExcluded.WithLabelValues(reason).Set(float64(n))
	}
}

// RecordValidation sets the flag gauges.  critical names the flags that
// block the gate.
func (m *PipelineMetrics) RecordValidation(flagCounts map[string]int, critical map[string]bool, unresolved int) {
	for flag, n := range flagCounts {
		m.FlagsTotal.WithLabelValues(flag, strconv.FormatBool(critical[flag])).Set(float64(n))
	}
	m.UnresolvedCritical.WithLabelValues().Set(float64(unresolved))
}

func (m *PipelineMetrics) RecordPublished(target string, n int) {
	m.ArtifactsPublished.WithLabelValues(target).Add(float64(n))
}

func (m *PipelineMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

//Personal.AI order the ending
