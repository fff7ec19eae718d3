package pipeline

import (
	"context"
	"time"

	"github.com/turtacn/DexAtlas/internal/application/bundle"
	"github.com/turtacn/DexAtlas/internal/infrastructure/ingest"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// Bundle joins the linked arm table with the model summaries named in the
// bundle config and writes the forest-plot payload.  Linkage must have run.
func (p *Pipeline) Bundle(ctx context.Context) (*bundle.Bundle, error) {
	start := time.Now()
	defer p.observe("bundle", start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bc := p.cfg.Bundle
	if !bc.Enabled() {
		return nil, errors.New(errors.ErrCodeConfig, "bundle.shrinkage_csv is not set")
	}

	armTbl, err := ingest.ReadTable(p.processed(artifacts.ArmLevelFile), bundle.ArmColumns)
	if err != nil {
		return nil, err
	}
	arms, err := bundle.ArmsFromRows(armTbl.Columns, armTbl.Rows)
	if err != nil {
		return nil, err
	}
	shrinkage, err := p.intervals(bc.ShrinkageCSV, bundle.ShrinkageColumns, bundle.ShrinkageFields)
	if err != nil {
		return nil, err
	}
	crude, err := p.intervals(bc.CrudeCSV, bundle.CrudeColumns, bundle.CrudeFields)
	if err != nil {
		return nil, err
	}
	overallTbl, err := ingest.ReadTable(bc.OverallCSV, bundle.OverallColumns)
	if err != nil {
		return nil, err
	}
	overall, err := bundle.OverallFromRows(overallTbl.Columns, overallTbl.Rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.GetCode(err), "parse "+bc.OverallCSV)
	}

	b, err := bundle.Build(arms, shrinkage, crude, overall, bundle.Options{
		XMinOR:     bc.XMinOR,
		XMaxOR:     bc.XMaxOR,
		GridPoints: bc.GridPoints,
	}, p.clock())
	if err != nil {
		return nil, err
	}
	if err := artifacts.WriteJSON(p.processed(artifacts.MetaBundleFile), b); err != nil {
		return nil, err
	}

	if b.Coverage.NRowsMissingModel > 0 {
		p.logger.Warn("bundle rows without model output",
			logging.Stage("bundle"),
			logging.Int("missing", b.Coverage.NRowsMissingModel),
			logging.Strings("comparison_ids", b.Coverage.MissingModelComparisonIDs))
	}
	p.logger.Info("bundle written",
		logging.Stage("bundle"),
		logging.Int("rows", b.Coverage.NArmRows),
		logging.Int("with_model", b.Coverage.NRowsWithModel))
	return b, nil
}

func (p *Pipeline) intervals(path string, required []string, fields [3]string) (map[bundle.Key]bundle.Interval, error) {
	tbl, err := ingest.ReadTable(path, required)
	if err != nil {
		return nil, err
	}
	out, err := bundle.IntervalsFromRows(tbl.Columns, tbl.Rows, fields)
	if err != nil {
		return nil, errors.Wrap(err, errors.GetCode(err), "parse "+path)
	}
	return out, nil
}

//Personal.AI order the ending
