package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/turtacn/DexAtlas/internal/config"
	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DexAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/minio"
	"github.com/turtacn/DexAtlas/pkg/errors"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

var tableHeader = []string{
	"Study", "Sample size", "Country", "Intervention arm", "Intervention events", "Control arm",
	"Control events", "Timing", "Mode", "Assessment tool", "Postop ICU care", "Source page",
}

var fixedClock = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func writeCSVFile(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
}

// setup writes a three-row table: a clean trial, a trial without sample
// size (critical) and a midazolam-controlled trial (excluded).
func setup(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))

	table := filepath.Join(raw, "table.csv")
	writeCSVFile(t, table, [][]string{
		tableHeader,
		{"Li 20237", "120 (60/60)", "China", "Dexmedetomidine 1 mcg/kg bolus, 0.4 mcg/kg/h infusion", "6/60",
			"Normal saline", "15/60", "During surgery", "IV", "CAM-ICU", "No", "3"},
		{"Park 2020", "", "Korea", "Dexmedetomidine 0.5 mcg/kg/h infusion", "",
			"Placebo", "", "Postoperative", "IV", "CAM", "Yes", "4"},
		{"Kim 2019", "60", "Korea", "Dexmedetomidine 0.5 mcg/kg", "",
			"Midazolam", "", "Postoperative", "IV", "CAM", "Yes", "5"},
	})

	rules := filepath.Join(raw, "rules.yml")
	require.NoError(t, os.WriteFile(rules,
		[]byte("include_terms: [saline, placebo]\nexclude_terms: [midazolam, propofol]\n"), 0o644))

	f := excelize.NewFile()
	defer f.Close()
	for i, r := range [][]interface{}{
		{"Study", "D1", "D2", "D3", "D4", "D5", "", "", "", "Overall"},
		{"Li 2023", "", "", "", "", "", "", "", "", "Low risk"},
		{"Ghost 2001", "", "", "", "", "", "", "", "", "High risk"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	rob := filepath.Join(raw, "rob.xlsx")
	require.NoError(t, f.SaveAs(rob))

	cfg := config.NewDefaultConfig()
	cfg.Input = config.InputConfig{
		TablePath:         table,
		RobPath:           rob,
		RulesPath:         rules,
		AdjudicationsPath: filepath.Join(raw, "adjudications.json"),
	}
	cfg.Output = config.OutputConfig{
		InterimDir:     filepath.Join(root, "interim"),
		ProcessedDir:   filepath.Join(root, "processed"),
		DocsDataDir:    filepath.Join(root, "docs", "data"),
		ParquetEnabled: true,
	}
	cfg.Pipeline.Workers = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func writeOverrides(t *testing.T, cfg *config.Config) {
	t.Helper()
	require.NoError(t, os.WriteFile(cfg.Input.AdjudicationsPath,
		[]byte(`{"park_2020": {"n_total": 90, "note": "from full text"}, "ghost_2001": {"n_total": 10}}`), 0o644))
}

func newPipeline(cfg *config.Config) *Pipeline {
	return New(cfg, logging.NewNopLogger(), WithClock(fixedClock))
}

func TestRun_StrictGateBlocks(t *testing.T) {
	cfg := setup(t)
	p := newPipeline(cfg)

	res, err := p.Run(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.IsBuildBlocked(err))
	assert.Equal(t, errors.ExitBuildBlocked, errors.ExitCodeFor(err))
	require.NotNil(t, res)
	assert.False(t, res.Report.GatePassed)
	assert.Equal(t, 1, res.Report.NUnresolvedCritical)

	// Blocked runs still leave the files for review, but nothing is synced.
	assert.FileExists(t, filepath.Join(cfg.Output.ProcessedDir, artifacts.CuratedFile))
	assert.FileExists(t, filepath.Join(cfg.Output.ProcessedDir, artifacts.ReviewQueueFile))
	assert.NoFileExists(t, filepath.Join(cfg.Output.ProcessedDir, artifacts.SummaryOverallFile))
	assert.NoDirExists(t, cfg.Output.DocsDataDir)

	_, err = p.Sync()
	assert.True(t, errors.IsBuildBlocked(err))
}

func TestRun_AllowUnresolved(t *testing.T) {
	cfg := setup(t)
	res, err := newPipeline(cfg).Run(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, res.Report.GatePassed)
	assert.True(t, res.Report.AllowUnresolved)
	assert.Equal(t, 1, res.Report.NUnresolvedCritical)
	assert.Equal(t, 2, res.Report.NTrialsCurated)
	assert.Equal(t, 2, res.Overall.NTrials)
	assert.Equal(t, "2024-05-01T12:00:00Z", res.Overall.GeneratedAtUTC)
	assert.Len(t, res.Checksums, len(artifacts.PublishedFiles))
	assert.Equal(t, artifacts.PublishedFiles, res.Synced)
}

func TestRun_OverrideResolvesCriticalFlag(t *testing.T) {
	cfg := setup(t)
	writeOverrides(t, cfg)
	p := newPipeline(cfg)

	res, err := p.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, res.Report.NUnresolvedCritical)
	require.Len(t, res.Report.OverrideWarnings, 1)
	assert.Equal(t, "ghost_2001", res.Report.OverrideWarnings[0].StudyKey)

	records, err := p.ReadCurated()
	require.NoError(t, err)
	require.Len(t, records, 2)
	park := records[1]
	assert.Equal(t, "park_2020_p4", park.TrialID)
	assert.Equal(t, 90, *park.NTotal)
	assert.True(t, park.HasFlag(ttypes.FlagManualAdjudication))
	assert.True(t, park.HasFlag(ttypes.FlagMissingNTotal), "history is kept")
	assert.Empty(t, park.CriticalFlags)
}

func TestExtract_ReportAndInterimTables(t *testing.T) {
	cfg := setup(t)
	cfg.Output.ParquetEnabled = false
	p := newPipeline(cfg)

	res, err := p.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.NArticlesRows)
	assert.Equal(t, 2, res.Report.NCanonicalRows)
	assert.Equal(t, 1, res.Report.Excluded["comparator_excluded"])
	assert.Equal(t, []string{"ghost_2001"}, res.Report.UnmatchedRobKeys)
	assert.False(t, res.Report.ParsedWrite.ParquetWritten)
	assert.Empty(t, res.Links)

	parsed := filepath.Join(cfg.Output.InterimDir, artifacts.InterimParsedFile)
	assert.FileExists(t, artifacts.FallbackPath(parsed))
	assert.FileExists(t, artifacts.MetaPath(parsed))

	// The validate stage reads the fallback back.
	report, err := p.Validate(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.NTrialsCurated)
	records, err := p.ReadCurated()
	require.NoError(t, err)
	assert.Equal(t, "CAM-ICU", records[0].AssessmentTool)
}

func TestValidate_Deterministic(t *testing.T) {
	curated := func() []byte {
		cfg := setup(t)
		p := newPipeline(cfg)
		_, err := p.Extract(context.Background())
		require.NoError(t, err)
		_, err = p.Validate(context.Background(), true)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(cfg.Output.ProcessedDir, artifacts.CuratedFile))
		require.NoError(t, err)
		// Source paths differ between temp dirs.
		return []byte(strings.ReplaceAll(string(data), filepath.Dir(cfg.Input.TablePath), "RAW"))
	}
	first, second := curated(), curated()
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("curated dataset differs between runs (-first +second):\n%s", diff)
	}
}

func TestValidate_MissingInterim(t *testing.T) {
	cfg := setup(t)
	_, err := newPipeline(cfg).Validate(context.Background(), false)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactMissing))
}

func TestExtract_ReferenceLinks(t *testing.T) {
	cfg := setup(t)
	cfg.Input.ReferencesPath = filepath.Join(filepath.Dir(cfg.Input.TablePath), "refs.txt")
	require.NoError(t, os.WriteFile(cfg.Input.ReferencesPath,
		[]byte("7. Li X, et al. Anesthesiology. doi: 10.1000/li.2023\n"), 0o644))

	res, err := newPipeline(cfg).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Links, 2)
	assert.Equal(t, "li_2023_p3", res.Links[0].TrialID)
	require.NotNil(t, res.Links[0].ReferenceNumber)
	assert.Equal(t, 7, *res.Links[0].ReferenceNumber)
	require.NotNil(t, res.Links[0].ReferenceURL)
	assert.Equal(t, "https://doi.org/10.1000/li.2023", *res.Links[0].ReferenceURL)
	assert.Nil(t, res.Links[1].ReferenceNumber)
}

func TestLinkage(t *testing.T) {
	cfg := setup(t)
	writeEvents(t, cfg)
	p := newPipeline(cfg)

	res, err := p.Run(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, res.Linkage)
	assert.Equal(t, 1, res.Linkage.Arms)
	assert.Equal(t, 2, res.Linkage.Coverage.NTrialsCurated)
	assert.Equal(t, 1, res.Linkage.Coverage.NExtractedTrials)
	assert.Equal(t, 1, res.Linkage.Coverage.NMissingInCSV)
	assert.FileExists(t, filepath.Join(cfg.Output.ProcessedDir, artifacts.ArmLevelFile))
	assert.FileExists(t, filepath.Join(cfg.Output.ProcessedDir, artifacts.LinkageReportFile))
}

func TestLinkage_NotConfigured(t *testing.T) {
	_, err := newPipeline(setup(t)).Linkage(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
}

func writeEvents(t *testing.T, cfg *config.Config) {
	t.Helper()
	cfg.Input.EventsPath = filepath.Join(filepath.Dir(cfg.Input.TablePath), "events.csv")
	writeCSVFile(t, cfg.Input.EventsPath, [][]string{
		{"studyID", "Intervention1", "Control", "Intervention1_cases", "Intervention_total", "Control_cases",
			"Control_total", "Intervention2", "Intervention2_cases", "Intervention2_total", "Intervention3",
			"Intervention3_cases", "Intervention3_total", "Complication"},
		{"Li_dex_2023", "Dexmedetomidine", "Saline", "6", "60", "15", "60", "", "", "", "", "", "", "Delirium"},
	})
}

func writeModelSummaries(t *testing.T, cfg *config.Config, overall [][]string) {
	t.Helper()
	dir := t.TempDir()
	cfg.Bundle.ShrinkageCSV = filepath.Join(dir, "shrinkage.csv")
	cfg.Bundle.CrudeCSV = filepath.Join(dir, "crude.csv")
	cfg.Bundle.OverallCSV = filepath.Join(dir, "overall.csv")
	writeCSVFile(t, cfg.Bundle.ShrinkageCSV, [][]string{
		{"trial_id", "dex_arm_index", "median_log_or", "lower_log_or", "upper_log_or"},
		{"li_2023_p4", "1", "-0.9", "-1.8", "0.1"},
	})
	writeCSVFile(t, cfg.Bundle.CrudeCSV, [][]string{
		{"trial_id", "dex_arm_index", "crude_or", "crude_or_ci_low", "crude_or_ci_high"},
		{"li_2023", "1", "0.33", "0.12", "0.93"},
	})
	writeCSVFile(t, cfg.Bundle.OverallCSV, overall)
}

func TestRun_WritesMetaBundle(t *testing.T) {
	cfg := setup(t)
	writeEvents(t, cfg)
	writeModelSummaries(t, cfg, [][]string{{"median", "q2.5", "q97.5"}, {"0.55", "0.4", "0.75"}})

	res, err := newPipeline(cfg).Run(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, res.Bundle)
	assert.Equal(t, 1, res.Bundle.Coverage.NArmRows)
	assert.Equal(t, 1, res.Bundle.Coverage.NRowsWithModel)
	assert.Equal(t, "li_2023__arm1", res.Bundle.Rows[0].ComparisonID)
	assert.Equal(t, config.DefaultBundleGridPoints, len(res.Bundle.GridOR))

	var onDisk map[string]interface{}
	require.NoError(t, artifacts.ReadJSON(filepath.Join(cfg.Output.ProcessedDir, artifacts.MetaBundleFile), &onDisk))
	assert.EqualValues(t, 1, onDisk["schema_version"])
	assert.Equal(t, "2024-05-01T12:00:00Z", onDisk["created_at_utc"])
}

func TestBundle_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := newPipeline(setup(t)).Bundle(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
	})
	t.Run("arm table missing", func(t *testing.T) {
		cfg := setup(t)
		writeModelSummaries(t, cfg, [][]string{{"median", "q2.5", "q97.5"}, {"0.55", "0.4", "0.75"}})
		_, err := newPipeline(cfg).Bundle(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrCodeIO))
	})
	t.Run("overall with two rows", func(t *testing.T) {
		cfg := setup(t)
		writeEvents(t, cfg)
		writeModelSummaries(t, cfg, [][]string{{"median", "q2.5", "q97.5"}, {"0.55", "0.4", "0.75"}, {"0.6", "0.4", "0.8"}})
		p := newPipeline(cfg)
		_, err := p.Run(context.Background(), true)
		require.Error(t, err)
		assert.True(t, errors.IsSchemaError(err))
	})
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	cfg := setup(t)
	cfg.Metrics.TextfilePath = filepath.Join(t.TempDir(), "dexatlas.prom")
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "dexatlas"}, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = New(cfg, logging.NewNopLogger(), WithMetrics(collector)).Run(context.Background(), false)
	require.True(t, errors.IsBuildBlocked(err))

	data, err := os.ReadFile(cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `dexatlas_runs_total{status="blocked"} 1`)
	assert.Contains(t, text, "dexatlas_records_built 2")
	assert.Contains(t, text, "dexatlas_unresolved_critical_records 1")
	assert.Contains(t, text, `dexatlas_validation_flags{critical="true",flag="missing_n_total"} 1`)
}

// ─────────────────────────────────────────────────────────────────────────────
// publish / export
// ─────────────────────────────────────────────────────────────────────────────

type mockStore struct{ mock.Mock }

func (m *mockStore) Publish(ctx context.Context, runID, dir string, files []string) (*minio.PublishResult, error) {
	args := m.Called(ctx, runID, dir, files)
	if r := args.Get(0); r != nil {
		return r.(*minio.PublishResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) PublishReleased(ctx context.Context, payload kafka.DatasetReleasedPayload) (*kafka.EventEnvelope, error) {
	args := m.Called(ctx, payload)
	if r := args.Get(0); r != nil {
		return r.(*kafka.EventEnvelope), args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeExporter struct {
	run     repositories.RunSummary
	records []*trial.TrialRecord
}

func (f *fakeExporter) ExportRun(_ context.Context, run repositories.RunSummary, records []*trial.TrialRecord) (int, error) {
	f.run, f.records = run, records
	return len(records), nil
}

func TestPublish(t *testing.T) {
	cfg := setup(t)
	p := newPipeline(cfg)
	res, err := p.Run(context.Background(), true)
	require.NoError(t, err)
	runID := string(res.Report.RunID)

	files := append(append([]string{}, artifacts.PublishedFiles...), artifacts.ChecksumsFile)
	store := &mockStore{}
	store.On("Publish", mock.Anything, runID, cfg.Output.ProcessedDir, files).Return(&minio.PublishResult{
		Bucket: "releases", Prefix: "dex/" + runID, RunID: runID, Objects: make([]*minio.UploadResult, len(files)),
	}, nil)
	notifier := &mockNotifier{}
	notifier.On("PublishReleased", mock.Anything, mock.MatchedBy(func(pl kafka.DatasetReleasedPayload) bool {
		return pl.RunID == runID && pl.Bucket == "releases" && pl.NRecords == 2 &&
			pl.AllowUnresolved && len(pl.Checksums) == len(artifacts.PublishedFiles)
	})).Return(&kafka.EventEnvelope{EventID: "evt-1"}, nil)

	out, err := p.Publish(context.Background(), store, notifier)
	require.NoError(t, err)
	assert.Equal(t, runID, out.RunID)
	assert.Equal(t, "evt-1", out.Event.EventID)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestPublish_Refusals(t *testing.T) {
	cfg := setup(t)
	p := newPipeline(cfg)
	notifier := &mockNotifier{}

	_, err := p.Publish(context.Background(), nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))

	_, err = p.Publish(context.Background(), nil, notifier)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportMissing))

	_, err = p.Run(context.Background(), false)
	require.True(t, errors.IsBuildBlocked(err))
	_, err = p.Publish(context.Background(), nil, notifier)
	assert.True(t, errors.IsBuildBlocked(err))

	// A dataset edited after checksums were written is refused.
	_, err = p.Run(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.ProcessedDir, artifacts.CuratedFile), []byte("[]\n"), 0o644))
	_, err = p.Publish(context.Background(), nil, notifier)
	assert.True(t, errors.IsCode(err, errors.ErrCodeChecksumMismatch))
	notifier.AssertNotCalled(t, "PublishReleased", mock.Anything, mock.Anything)
}

func TestExport(t *testing.T) {
	cfg := setup(t)
	p := newPipeline(cfg)
	exp := &fakeExporter{}

	_, err := p.Export(context.Background(), exp)
	assert.True(t, errors.IsCode(err, errors.ErrCodeReportMissing))

	res, err := p.Run(context.Background(), true)
	require.NoError(t, err)
	n, err := p.Export(context.Background(), exp)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, string(res.Report.RunID), exp.run.RunID)
	assert.True(t, exp.run.GatePassed)
	assert.Equal(t, 1, exp.run.NUnresolvedCritical)
	assert.Equal(t, fixedClock(), exp.run.GeneratedAt)
}

func TestNew_Panics(t *testing.T) {
	assert.Panics(t, func() { New(nil, logging.NewNopLogger()) })
	assert.Panics(t, func() { New(config.NewDefaultConfig(), nil) })
}

//Personal.AI order the ending
