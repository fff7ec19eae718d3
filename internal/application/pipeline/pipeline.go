// internal/application/pipeline/pipeline.go
//
// Pipeline orchestration: each stage reads the artifacts of the previous one
// from disk and writes its own, so stages can run alone from the CLI or
// chained by Run.
//
// Dependencies:
//   Depends on: application/{extraction,adjudication,validation,summary,references,
//               linkage,bundle},
//               infrastructure/{ingest,storage/artifacts,monitoring}
//   Depended by: interfaces/cli, interfaces/http

package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/turtacn/DexAtlas/internal/application/adjudication"
	"github.com/turtacn/DexAtlas/internal/application/bundle"
	"github.com/turtacn/DexAtlas/internal/application/extraction"
	"github.com/turtacn/DexAtlas/internal/application/references"
	"github.com/turtacn/DexAtlas/internal/application/summary"
	"github.com/turtacn/DexAtlas/internal/application/validation"
	"github.com/turtacn/DexAtlas/internal/config"
	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/ingest"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	"github.com/turtacn/DexAtlas/internal/intelligence/classifier"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/errors"
	"github.com/turtacn/DexAtlas/pkg/types/common"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// Pipeline runs curation stages against one configuration.
type Pipeline struct {
	cfg       *config.Config
	logger    logging.Logger
	collector prometheus.MetricsCollector
	metrics   *prometheus.PipelineMetrics
	clock     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records stage metrics on collector.
func WithMetrics(collector prometheus.MetricsCollector) Option {
	return func(p *Pipeline) {
		p.collector = collector
		p.metrics = prometheus.NewPipelineMetrics(collector)
	}
}

// WithClock replaces time.Now for summary timestamps.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// New returns a Pipeline.  cfg must already be validated.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) *Pipeline {
	if cfg == nil {
		panic("pipeline: config is required")
	}
	if logger == nil {
		panic("pipeline: logger is required")
	}
	p := &Pipeline{cfg: cfg, logger: logger, clock: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) interim(name string) string {
	return filepath.Join(p.cfg.Output.InterimDir, name)
}

func (p *Pipeline) processed(name string) string {
	return filepath.Join(p.cfg.Output.ProcessedDir, name)
}

func (p *Pipeline) bands() trial.Bands {
	v := p.cfg.Validation
	return trial.Bands{BolusMin: v.BolusMin, BolusMax: v.BolusMax, InfusionMin: v.InfusionMin, InfusionMax: v.InfusionMax}
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStage(stage, time.Since(start))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// extract
// ─────────────────────────────────────────────────────────────────────────────

// ExtractReport is written to unmatched_rob_keys.json.  Override warnings are
// carried to the validate stage through it.
type ExtractReport struct {
	UnmatchedRobKeys []string                `json:"unmatched_rob_keys"`
	RawWrite         *artifacts.TableMeta    `json:"raw_write"`
	ParsedWrite      *artifacts.TableMeta    `json:"parsed_write"`
	NArticlesRows    int                     `json:"n_articles_rows"`
	NCanonicalRows   int                     `json:"n_canonical_rows"`
	Excluded         map[string]int          `json:"excluded"`
	OverrideWarnings []trial.OverrideWarning `json:"override_warnings"`
}

// ExtractResult is the in-memory output of Extract.
type ExtractResult struct {
	Records []*trial.TrialRecord
	Report  *ExtractReport
	Links   []references.Link
}

// Extract reads the raw inputs, builds and adjudicates the records and
// writes the interim tables.
func (p *Pipeline) Extract(ctx context.Context) (*ExtractResult, error) {
	start := time.Now()
	defer p.observe("extract", start)
	in := p.cfg.Input

	rules, err := ingest.ReadComparatorRules(in.RulesPath)
	if err != nil {
		return nil, err
	}
	robEntries, err := ingest.ReadRobWorkbook(in.RobPath, p.cfg.Pipeline.RobOverallColumn, p.cfg.Pipeline.RobFallbackColumn)
	if err != nil {
		return nil, err
	}
	rows, err := ingest.ReadSupplementaryTable(in.TablePath)
	if err != nil {
		return nil, err
	}
	fulltext := map[string]extraction.Enrichment{}
	if in.PDFDir != "" {
		texts, err := ingest.ReadPDFDir(in.PDFDir, p.cfg.Pipeline.FulltextPages, p.logger)
		if err != nil {
			return nil, err
		}
		fulltext = extraction.FulltextIndex(texts)
	}

	svc := extraction.NewExtractionService(
		classifier.NewComparatorClassifier(rules),
		classifier.NewRobIndex(robEntries),
		fulltext,
		extraction.Options{
			Policy: extraction.Policy{
				RetainUnclearComparator: p.cfg.Pipeline.RetainUnclearComparator,
				Bands:                   p.bands(),
			},
			Workers: p.cfg.Pipeline.Workers,
		},
		p.logger,
	)
	built, err := svc.BuildAll(ctx, rows)
	if err != nil {
		return nil, err
	}

	overrides := adjudication.Overrides{}
	if data, ok, err := ingest.ReadOptional(in.AdjudicationsPath); err != nil {
		return nil, err
	} else if ok {
		if overrides, err = adjudication.ParseOverrides(data); err != nil {
			return nil, err
		}
	}
	records, warnings, err := adjudication.NewMerger(p.bands(), p.logger).Merge(built.Records, overrides)
	if err != nil {
		return nil, err
	}

	links, err := p.referenceLinks(rows, records)
	if err != nil {
		return nil, err
	}

	parquetOn := p.cfg.Output.ParquetEnabled
	rawMeta, err := artifacts.WriteTable(p.interim(artifacts.InterimRawFile), rows, artifacts.RawRowTable, parquetOn)
	if err != nil {
		return nil, err
	}
	parsedMeta, err := artifacts.WriteTable(p.interim(artifacts.InterimParsedFile), artifacts.ParsedRows(records), artifacts.ParsedRowTable, parquetOn)
	if err != nil {
		return nil, err
	}
	for _, m := range []*artifacts.TableMeta{rawMeta, parsedMeta} {
		if !m.ParquetWritten {
			p.logger.Warn("parquet not written, csv fallback used",
				logging.String("target", m.TargetParquet), logging.String("reason", m.ParquetError))
		}
	}

	report := &ExtractReport{
		UnmatchedRobKeys: append([]string{}, built.UnmatchedRobKeys...),
		RawWrite:         rawMeta,
		ParsedWrite:      parsedMeta,
		NArticlesRows:    len(rows),
		NCanonicalRows:   len(records),
		Excluded:         map[string]int{},
		OverrideWarnings: append([]trial.OverrideWarning{}, warnings...),
	}
	for d, n := range built.Excluded {
		report.Excluded[string(d)] = n
	}
	if err := artifacts.WriteJSON(p.interim(artifacts.UnmatchedRobFile), report); err != nil {
		return nil, err
	}
	if err := artifacts.WriteJSON(p.interim(artifacts.ReferenceLinksFile), links); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.RecordBuild(len(records), report.Excluded)
	}
	logging.LogStageDuration(p.logger, "extract", start,
		logging.Int("rows", len(rows)),
		logging.Int("records", len(records)),
		logging.Int("override_warnings", len(warnings)),
		logging.Int("reference_links", len(links)))
	return &ExtractResult{Records: records, Report: report, Links: links}, nil
}

// referenceLinks resolves reference URLs when a reference list is configured.
func (p *Pipeline) referenceLinks(rows []trial.RawRow, records []*trial.TrialRecord) ([]references.Link, error) {
	text, ok, err := ingest.ReadReferenceList(p.cfg.Input.ReferencesPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []references.Link{}, nil
	}
	rawStudy := make(map[string]string, len(rows))
	for _, r := range rows {
		id := trial.NewTrialID(normalizer.StudyKey(normalizer.CleanStudyLabel(r.Study)), r.SourcePage)
		if _, dup := rawStudy[id]; !dup {
			rawStudy[id] = r.Study
		}
	}
	return references.Build(records, rawStudy, references.ParseList(text)), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// validate
// ─────────────────────────────────────────────────────────────────────────────

// Validate runs the QA gate over the parsed interim table and writes the
// curated dataset, the review queue and the validation report.  The three
// files are written even when the gate blocks; the BuildBlocked error is
// returned afterwards.
func (p *Pipeline) Validate(ctx context.Context, allowUnresolved bool) (*validation.Report, error) {
	start := time.Now()
	defer p.observe("validate", start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := artifacts.ReadTable(p.interim(artifacts.InterimParsedFile), artifacts.ParsedRowTable)
	if err != nil {
		return nil, err
	}
	records := make([]*trial.TrialRecord, 0, len(parsed))
	for _, row := range parsed {
		records = append(records, row.Record())
	}
	trial.SortByID(records)

	var extract ExtractReport
	if err := artifacts.ReadJSON(p.interim(artifacts.UnmatchedRobFile), &extract); err != nil && !errors.IsCode(err, errors.ErrCodeArtifactMissing) {
		return nil, err
	}

	report, queue, gateErr := validation.NewValidator(p.logger).Validate(records, validation.Options{
		AllowUnresolved:  allowUnresolved,
		RunID:            common.NewRunID(),
		OverrideWarnings: extract.OverrideWarnings,
	})
	if report == nil {
		return nil, gateErr
	}

	if err := artifacts.WriteJSON(p.processed(artifacts.CuratedFile), records); err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(queue))
	for _, e := range queue {
		rows = append(rows, e.Row())
	}
	if err := artifacts.WriteCSV(p.processed(artifacts.ReviewQueueFile), validation.ReviewQueueColumns, rows); err != nil {
		return nil, err
	}
	if err := artifacts.WriteJSON(p.processed(artifacts.ValidationFile), report); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		critical := make(map[string]bool, len(report.FlagCounts))
		for f := range report.FlagCounts {
			critical[f] = ttypes.IsCritical(f)
		}
		p.metrics.RecordValidation(report.FlagCounts, critical, report.NUnresolvedCritical)
	}
	return report, gateErr
}

// ReadCurated loads the curated dataset written by Validate.
func (p *Pipeline) ReadCurated() ([]*trial.TrialRecord, error) {
	var records []*trial.TrialRecord
	if err := artifacts.ReadJSON(p.processed(artifacts.CuratedFile), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadReport loads the validation report written by Validate.
func (p *Pipeline) ReadReport() (*validation.Report, error) {
	var report validation.Report
	if err := artifacts.ReadJSON(p.processed(artifacts.ValidationFile), &report); err != nil {
		if errors.IsCode(err, errors.ErrCodeArtifactMissing) {
			return nil, errors.Wrap(err, errors.ErrCodeReportMissing, "validation report not found; run validate first")
		}
		return nil, err
	}
	return &report, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// summarize, checksums, sync
// ─────────────────────────────────────────────────────────────────────────────

// Summarize writes the pooled and the RoB-stratified summaries of the
// curated dataset.
func (p *Pipeline) Summarize(ctx context.Context) (*summary.Overall, *summary.ByRob, error) {
	start := time.Now()
	defer p.observe("summarize", start)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	records, err := p.ReadCurated()
	if err != nil {
		return nil, nil, err
	}
	overall, byRob := summary.NewSummarizer(p.clock, p.logger).Summarize(records)
	if err := artifacts.WriteJSON(p.processed(artifacts.SummaryOverallFile), overall); err != nil {
		return nil, nil, err
	}
	if err := artifacts.WriteJSON(p.processed(artifacts.SummaryByRobFile), byRob); err != nil {
		return nil, nil, err
	}
	return overall, byRob, nil
}

// Checksums writes checksums.json for the published artifacts.
func (p *Pipeline) Checksums() (map[string]string, error) {
	start := time.Now()
	defer p.observe("checksums", start)
	sums, err := artifacts.WriteChecksums(p.cfg.Output.ProcessedDir, p.processed(artifacts.ChecksumsFile))
	if err != nil {
		return nil, err
	}
	p.logger.Info("checksums written", logging.Stage("checksums"), logging.Int("files", len(sums)))
	return sums, nil
}

// Sync copies the published artifacts to the docs data directory.  A
// blocked gate refuses the copy.
func (p *Pipeline) Sync() ([]string, error) {
	start := time.Now()
	defer p.observe("sync", start)
	if p.cfg.Output.DocsDataDir == "" {
		return nil, errors.New(errors.ErrCodeConfig, "output.docs_data_dir is not set")
	}
	copied, err := artifacts.Sync(p.cfg.Output.ProcessedDir, p.cfg.Output.DocsDataDir, p.logger)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordPublished("docs", len(copied))
	}
	return copied, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// run
// ─────────────────────────────────────────────────────────────────────────────

// RunResult summarizes a full run.
type RunResult struct {
	Report    *validation.Report
	Overall   *summary.Overall
	Checksums map[string]string
	Synced    []string
	Linkage   *LinkageResult
	Bundle    *bundle.Bundle
}

// Run chains extract, validate, summarize, checksums, the optional linkage
// and bundle stages and sync.  A blocked gate stops the run after validate.
func (p *Pipeline) Run(ctx context.Context, allowUnresolved bool) (res *RunResult, err error) {
	start := time.Now()
	defer func() {
		status := "passed"
		switch {
		case errors.IsBuildBlocked(err):
			status = "blocked"
		case err != nil:
			status = "failed"
		}
		if p.metrics != nil {
			p.metrics.RecordRun(status)
		}
		if werr := p.WriteMetrics(); werr != nil {
			p.logger.Warn("metrics textfile not written", logging.Err(werr))
		}
		p.logger.Info("run finished", logging.String("status", status), logging.Duration("elapsed", time.Since(start)))
	}()

	if _, err := p.Extract(ctx); err != nil {
		return nil, err
	}
	res = &RunResult{}
	if res.Report, err = p.Validate(ctx, allowUnresolved); err != nil {
		return res, err
	}
	if res.Overall, _, err = p.Summarize(ctx); err != nil {
		return res, err
	}
	if res.Checksums, err = p.Checksums(); err != nil {
		return res, err
	}
	if p.cfg.Input.EventsPath != "" {
		if res.Linkage, err = p.Linkage(ctx); err != nil {
			return res, err
		}
		if p.cfg.Bundle.Enabled() {
			if res.Bundle, err = p.Bundle(ctx); err != nil {
				return res, err
			}
		}
	}
	if p.cfg.Output.DocsDataDir != "" {
		if res.Synced, err = p.Sync(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// WriteMetrics writes the Prometheus textfile when metrics.textfile_path is
// set.
func (p *Pipeline) WriteMetrics() error {
	if p.collector == nil || p.cfg.Metrics.TextfilePath == "" {
		return nil
	}
	return p.collector.WriteTextfile(p.cfg.Metrics.TextfilePath)
}

//Personal.AI order the ending
