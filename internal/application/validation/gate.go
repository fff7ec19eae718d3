// internal/application/validation/gate.go
//
// QA Gate: aggregates record flags into the validation report, derives the
// review queue and decides whether the build may be published.  The gate
// never changes records.

package validation

import (
	"sort"
	"strconv"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
	"github.com/turtacn/DexAtlas/pkg/types/common"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// Report is the validation report of one run.  It is built once and not
// modified afterwards.
type Report struct {
	RunID               common.RunID            `json:"run_id"`
	NTrialsCurated      int                     `json:"n_trials_curated"`
	NReviewQueue        int                     `json:"n_review_queue"`
	NUnresolvedCritical int                     `json:"n_unresolved_critical"`
	CriticalFlags       []string                `json:"critical_flags"`
	AllowUnresolved     bool                    `json:"allow_unresolved"`
	GatePassed          bool                    `json:"gate_passed"`
	FlagCounts          map[string]int          `json:"flag_counts"`
	CriticalFlagCounts  map[string]int          `json:"critical_flag_counts"`
	OverrideWarnings    []trial.OverrideWarning `json:"override_warnings"`
}

// Blocked reports whether the gate refused the build.
func (r *Report) Blocked() bool { return !r.GatePassed }

// ReviewQueueEntry is one row of the adjudication queue.
type ReviewQueueEntry struct {
	TrialID         string             `json:"trial_id"`
	StudyLabel      string             `json:"study_label"`
	RobOverallStd   ttypes.RobCategory `json:"rob_overall_std"`
	ValidationFlags trial.FlagList     `json:"validation_flags"`
	CriticalFlags   trial.FlagList     `json:"critical_flags"`
	SourcePage      int                `json:"source_page"`
	SourceFile      string             `json:"source_file"`
}

// ReviewQueueColumns is the header of the review queue CSV.
var ReviewQueueColumns = []string{
	"trial_id", "study_label", "rob_overall_std", "validation_flags",
	"critical_flags", "source_page", "source_file",
}

// Row renders the entry in ReviewQueueColumns order with ";"-joined flags.
func (e ReviewQueueEntry) Row() []string {
	return []string{
		e.TrialID, e.StudyLabel, string(e.RobOverallStd), e.ValidationFlags.String(),
		e.CriticalFlags.String(), strconv.Itoa(e.SourcePage), e.SourceFile,
	}
}

// Options are the inputs of the gate besides the records.
type Options struct {
	AllowUnresolved  bool
	RunID            common.RunID
	OverrideWarnings []trial.OverrideWarning
}

// Passes is the gate decision: blocked iff unresolved critical records exist
// and the caller did not allow them.
func Passes(unresolved int, allowUnresolved bool) bool {
	return unresolved == 0 || allowUnresolved
}

// Validator runs the QA gate.
type Validator struct {
	logger logging.Logger
}

// NewValidator returns a Validator logging to logger.
func NewValidator(logger logging.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Validator{logger: logger}
}

// Validate checks the record invariants and aggregates the report and the
// review queue.  Invariant violations return a SchemaError and nothing else.
// A blocked gate returns the full report and queue together with a
// BuildBlocked error, so callers can still write them for review.
func (v *Validator) Validate(records []*trial.TrialRecord, opts Options) (*Report, []ReviewQueueEntry, error) {
	if err := trial.ValidateSet(records); err != nil {
		return nil, nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = common.NewRunID()
	}
	report := &Report{
		RunID:              runID,
		NTrialsCurated:     len(records),
		CriticalFlags:      append([]string{}, ttypes.CriticalFlags...),
		AllowUnresolved:    opts.AllowUnresolved,
		FlagCounts:         map[string]int{},
		CriticalFlagCounts: map[string]int{},
		OverrideWarnings:   append([]trial.OverrideWarning{}, opts.OverrideWarnings...),
	}
	sort.Strings(report.CriticalFlags)

	queue := make([]ReviewQueueEntry, 0)
	for _, r := range records {
		for _, f := range r.ValidationFlags {
			report.FlagCounts[f]++
		}
		for _, f := range r.CriticalFlags {
			report.CriticalFlagCounts[f]++
		}
		if r.HasCriticalIssues {
			report.NUnresolvedCritical++
		}
		if r.NeedsAdjudication {
			queue = append(queue, ReviewQueueEntry{
				TrialID:         r.TrialID,
				StudyLabel:      r.StudyLabel,
				RobOverallStd:   r.RobOverallStd,
				ValidationFlags: append(trial.FlagList{}, r.ValidationFlags...),
				CriticalFlags:   append(trial.FlagList{}, r.CriticalFlags...),
				SourcePage:      r.SourcePage,
				SourceFile:      r.SourceFile,
			})
		}
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].TrialID < queue[j].TrialID })
	report.NReviewQueue = len(queue)
	report.GatePassed = Passes(report.NUnresolvedCritical, opts.AllowUnresolved)

	v.logger.Info("validation completed",
		logging.Stage("validate"),
		logging.String("run_id", string(runID)),
		logging.Int("curated", report.NTrialsCurated),
		logging.Int("review_queue", report.NReviewQueue),
		logging.Int("unresolved_critical", report.NUnresolvedCritical),
		logging.Bool("allow_unresolved", opts.AllowUnresolved))

	if !report.GatePassed {
		return report, queue, errors.NewBuildBlocked(report.NUnresolvedCritical, report.CriticalFlagCounts)
	}
	if report.NUnresolvedCritical > 0 {
		v.logger.Warn("unresolved critical flags allowed by override",
			logging.Int("unresolved_critical", report.NUnresolvedCritical))
	}
	return report, queue, nil
}

//Personal.AI order the ending
