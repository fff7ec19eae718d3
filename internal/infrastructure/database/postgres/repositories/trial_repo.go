// Package repositories provides PostgreSQL-backed storage for exported
// curation runs.
package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/DexAtlas/pkg/errors"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunSummary is the run header stored with every export.
type RunSummary struct {
	RunID               string
	GeneratedAt         time.Time
	NRecords            int
	NUnresolvedCritical int
	AllowUnresolved     bool
	GatePassed          bool
}

// TrialRepository exports curated trials.
type TrialRepository struct {
	db     DB
	logger logging.Logger
}

func NewTrialRepository(db DB, logger logging.Logger) *TrialRepository {
	if logger == nil {
		panic("repositories: logger is required")
	}
	return &TrialRepository{db: db, logger: logger}
}

const upsertRunSQL = `
	INSERT INTO curation_runs (run_id, generated_at, n_records, n_unresolved_critical, allow_unresolved, gate_passed)
	VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (run_id) DO UPDATE SET
		generated_at = EXCLUDED.generated_at,
		n_records = EXCLUDED.n_records,
		n_unresolved_critical = EXCLUDED.n_unresolved_critical,
		allow_unresolved = EXCLUDED.allow_unresolved,
		gate_passed = EXCLUDED.gate_passed,
		exported_at = now()`

const upsertTrialSQL = `
	INSERT INTO trials (
		trial_id, run_id, study_label, year, country, n_total,
		dex_arm_text_raw, control_arm_text_raw, control_class,
		bolus_value, bolus_unit, infusion_low, infusion_high, infusion_unit, infusion_weight_normalized,
		timing_phase, route_std, rob_overall_std, extraction_confidence,
		validation_flags, critical_flags, needs_adjudication, has_critical_issues,
		source_page, source_file
	) VALUES (
		$1,$2,$3,$4,$5,$6,
		$7,$8,$9,
		$10,$11,$12,$13,$14,$15,
		$16,$17,$18,$19,
		$20,$21,$22,$23,
		$24,$25
	)
	ON CONFLICT (trial_id) DO UPDATE SET
		run_id = EXCLUDED.run_id,
		study_label = EXCLUDED.study_label,
		year = EXCLUDED.year,
		country = EXCLUDED.country,
		n_total = EXCLUDED.n_total,
		dex_arm_text_raw = EXCLUDED.dex_arm_text_raw,
		control_arm_text_raw = EXCLUDED.control_arm_text_raw,
		control_class = EXCLUDED.control_class,
		bolus_value = EXCLUDED.bolus_value,
		bolus_unit = EXCLUDED.bolus_unit,
		infusion_low = EXCLUDED.infusion_low,
		infusion_high = EXCLUDED.infusion_high,
		infusion_unit = EXCLUDED.infusion_unit,
		infusion_weight_normalized = EXCLUDED.infusion_weight_normalized,
		timing_phase = EXCLUDED.timing_phase,
		route_std = EXCLUDED.route_std,
		rob_overall_std = EXCLUDED.rob_overall_std,
		extraction_confidence = EXCLUDED.extraction_confidence,
		validation_flags = EXCLUDED.validation_flags,
		critical_flags = EXCLUDED.critical_flags,
		needs_adjudication = EXCLUDED.needs_adjudication,
		has_critical_issues = EXCLUDED.has_critical_issues,
		source_page = EXCLUDED.source_page,
		source_file = EXCLUDED.source_file,
		updated_at = now()`

// trialArgs returns the upsertTrialSQL arguments for r.
func trialArgs(runID string, r *trial.TrialRecord) []any {
	return []any{
		r.TrialID, runID, r.StudyLabel, r.Year, r.Country, r.NTotal,
		r.DexArmTextRaw, r.ControlArmTextRaw, string(r.ControlClass),
		r.BolusValue, r.BolusUnit, r.InfusionLow, r.InfusionHigh, r.InfusionUnit, r.InfusionWeightNormalized,
		string(r.TimingPhase), string(r.RouteStd), string(r.RobOverallStd), r.ExtractionConfidence,
		nonNil(r.ValidationFlags), nonNil(r.CriticalFlags), r.NeedsAdjudication, r.HasCriticalIssues,
		r.SourcePage, r.SourceFile,
	}
}

func nonNil(l trial.FlagList) []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

// ExportRun upserts the run header and its records in one transaction.
// Trials no longer present in the run are removed.
func (r *TrialRepository) ExportRun(ctx context.Context, run RunSummary, records []*trial.TrialRecord) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, upsertRunSQL,
		run.RunID, run.GeneratedAt, run.NRecords, run.NUnresolvedCritical, run.AllowUnresolved, run.GatePassed,
	); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to upsert run")
	}

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		batch.Queue(upsertTrialSQL, trialArgs(run.RunID, rec)...)
		ids = append(ids, rec.TrialID)
	}
	br := tx.SendBatch(ctx, batch)
	for _, id := range ids {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to upsert trial "+id)
		}
	}
	if err := br.Close(); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to upsert trials")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM trials WHERE NOT (trial_id = ANY($1))`, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to prune trials")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	r.logger.Info("run exported",
		logging.String("run_id", run.RunID),
		logging.Int("trials", len(ids)),
		logging.Int64("pruned", tag.RowsAffected()))
	return len(ids), nil
}

// ListByRun returns the trials of runID sorted by trial id.
func (r *TrialRepository) ListByRun(ctx context.Context, runID string) ([]*trial.TrialRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT trial_id, study_label, year, country, n_total,
		       dex_arm_text_raw, control_arm_text_raw, control_class,
		       bolus_value, bolus_unit, infusion_low, infusion_high, infusion_unit, infusion_weight_normalized,
		       timing_phase, route_std, rob_overall_std, extraction_confidence,
		       validation_flags, critical_flags, needs_adjudication, has_critical_issues,
		       source_page, source_file
		FROM trials WHERE run_id = $1 ORDER BY trial_id`, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to query trials")
	}
	defer rows.Close()

	var out []*trial.TrialRecord
	for rows.Next() {
		var (
			rec                         trial.TrialRecord
			control, timing, route, rob string
			flags, critical             []string
		)
		if err := rows.Scan(
			&rec.TrialID, &rec.StudyLabel, &rec.Year, &rec.Country, &rec.NTotal,
			&rec.DexArmTextRaw, &rec.ControlArmTextRaw, &control,
			&rec.BolusValue, &rec.BolusUnit, &rec.InfusionLow, &rec.InfusionHigh, &rec.InfusionUnit, &rec.InfusionWeightNormalized,
			&timing, &route, &rob, &rec.ExtractionConfidence,
			&flags, &critical, &rec.NeedsAdjudication, &rec.HasCriticalIssues,
			&rec.SourcePage, &rec.SourceFile,
		); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to scan trial")
		}
		rec.ControlClass = ttypes.ControlClass(control)
		rec.TimingPhase = ttypes.TimingPhase(timing)
		rec.RouteStd = ttypes.Route(route)
		rec.RobOverallStd = ttypes.RobCategory(rob)
		rec.ValidationFlags = trial.FlagList(flags)
		rec.CriticalFlags = trial.FlagList(critical)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to iterate trials")
	}
	return out, nil
}

// CountByRun returns the number of trials stored for runID.
func (r *TrialRepository) CountByRun(ctx context.Context, runID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM trials WHERE run_id = $1`, runID).Scan(&n); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to count trials")
	}
	return n, nil
}

//Personal.AI order the ending
