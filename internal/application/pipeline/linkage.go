package pipeline

import (
	"context"
	"time"

	"github.com/turtacn/DexAtlas/internal/application/linkage"
	"github.com/turtacn/DexAtlas/internal/infrastructure/ingest"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// LinkageResult is the output of the linkage stage.
type LinkageResult struct {
	Arms     int
	Coverage linkage.Coverage
}

// Linkage joins the curated dataset to the event-count CSV and writes the
// arm-level table, the per-trial report and the coverage summary.
func (p *Pipeline) Linkage(ctx context.Context) (*LinkageResult, error) {
	start := time.Now()
	defer p.observe("linkage", start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.cfg.Input.EventsPath == "" {
		return nil, errors.New(errors.ErrCodeConfig, "input.events_path is not set")
	}

	records, err := p.ReadCurated()
	if err != nil {
		return nil, err
	}
	tbl, err := ingest.ReadTable(p.cfg.Input.EventsPath, linkage.EventColumns)
	if err != nil {
		return nil, err
	}
	events := make([]linkage.EventRow, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		events = append(events, linkage.EventRowFromCells(tbl.Columns, row))
	}

	var policy *linkage.Policy
	if data, ok, err := ingest.ReadOptional(p.cfg.Input.LinkagePolicyPath); err != nil {
		return nil, err
	} else if ok {
		if policy, err = linkage.ParsePolicy(data); err != nil {
			return nil, err
		}
	}

	res, err := linkage.NewLinker(policy, p.logger).Link(records, events)
	if err != nil {
		return nil, err
	}

	arms := make([][]string, 0, len(res.Arms))
	for _, a := range res.Arms {
		arms = append(arms, a.Row())
	}
	if err := artifacts.WriteCSV(p.processed(artifacts.ArmLevelFile), linkage.ArmColumns, arms); err != nil {
		return nil, err
	}
	report := make([][]string, 0, len(res.Report))
	for _, r := range res.Report {
		report = append(report, r.Row())
	}
	if err := artifacts.WriteCSV(p.processed(artifacts.LinkageReportFile), linkage.ReportColumns, report); err != nil {
		return nil, err
	}
	if err := artifacts.WriteJSON(p.processed(artifacts.LinkageCoverageFile), res.Coverage); err != nil {
		return nil, err
	}

	p.logger.Info("linkage written",
		logging.Stage("linkage"),
		logging.Int("events", len(events)),
		logging.Int("arms", len(res.Arms)),
		logging.Int("extracted_trials", res.Coverage.NExtractedTrials))
	return &LinkageResult{Arms: len(res.Arms), Coverage: res.Coverage}, nil
}

//Personal.AI order the ending
