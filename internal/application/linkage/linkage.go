// internal/application/linkage/linkage.go
//
// Event-count linkage: joins curated trials to an arm-level event-count CSV
// and reports exactly one status per curated trial.  Counts are copied, never
// derived.
//
// Dependencies:
//   Depends on: domain/trial, intelligence/normalizer, pkg/errors, logging
//   Depended by: interfaces/cli (linkage), application/pipeline

package linkage

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// Status is the linkage outcome of one curated trial.
type Status string

const (
	StatusExtracted           Status = "extracted"
	StatusMissingInCSV        Status = "missing_in_csv"
	StatusControlMismatch     Status = "control_mismatch"
	StatusAmbiguousUnresolved Status = "ambiguous_unresolved"
	StatusInconsistentRows    Status = "inconsistent_csv_rows"
	StatusManuallyExcluded    Status = "manually_excluded"
	StatusNoDexArm            Status = "no_dex_arm"
)

// Mapping methods recorded on arm rows.
const (
	MethodExactKey       = "exact_key"
	MethodAliasKey       = "alias_key"
	MethodAmbiguityRule  = "ambiguity_rule"
	MethodManualOverride = "manual_override"
)

// QC flags recorded on arm rows.
const (
	QCManualCounts      = "manual_counts_override"
	QCMultiDexTrial     = "multi_dex_trial"
	QCUsedAlias         = "used_study_key_alias"
	QCResolvedAmbiguity = "resolved_ambiguity_by_dexmedetomidine_name"
)

// EventColumns are the required columns of the event-count CSV.
var EventColumns = []string{
	"studyID", "Intervention1", "Control",
	"Intervention1_cases", "Intervention_total", "Control_cases", "Control_total",
	"Intervention2", "Intervention2_cases", "Intervention2_total",
	"Intervention3", "Intervention3_cases", "Intervention3_total",
	"Complication",
}

// EventArm is one intervention arm of an event row.  Counts stay text until a
// trial is actually extracted.
type EventArm struct {
	Label string
	Cases string
	Total string
}

// EventRow is one row of the event-count CSV.  A study repeats once per
// reported complication.
type EventRow struct {
	StudyID      string
	Arms         [3]EventArm
	Control      string
	ControlCases string
	ControlTotal string
	Complication string
}

// EventRowFromCells maps a CSV record onto an EventRow using the header
// positions in col.
func EventRowFromCells(col map[string]int, cells []string) EventRow {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(cells) {
			return normalizer.CleanText(cells[i])
		}
		return ""
	}
	return EventRow{
		StudyID: get("studyID"),
		Arms: [3]EventArm{
			{Label: get("Intervention1"), Cases: get("Intervention1_cases"), Total: get("Intervention_total")},
			{Label: get("Intervention2"), Cases: get("Intervention2_cases"), Total: get("Intervention2_total")},
			{Label: get("Intervention3"), Cases: get("Intervention3_cases"), Total: get("Intervention3_total")},
		},
		Control:      get("Control"),
		ControlCases: get("Control_cases"),
		ControlTotal: get("Control_total"),
		Complication: get("Complication"),
	}
}

// counts is the tuple compared when collapsing repeated rows.
func (e EventRow) counts() [8]string {
	return [8]string{
		e.Arms[0].Cases, e.Arms[0].Total, e.ControlCases, e.ControlTotal,
		e.Arms[1].Cases, e.Arms[1].Total, e.Arms[2].Cases, e.Arms[2].Total,
	}
}

// ArmRow is one dex-vs-control comparison in the arm-level output.
type ArmRow struct {
	TrialID       string `json:"trial_id"`
	StudyLabel    string `json:"study_label"`
	StudyKey      string `json:"study_key"`
	StudyIDCSV    string `json:"studyID_csv"`
	DexArmIndex   int    `json:"dex_arm_index"`
	DexArmLabel   string `json:"dex_arm_label"`
	DexEvents     int    `json:"dex_events"`
	DexTotal      int    `json:"dex_total"`
	ControlLabel  string `json:"control_label"`
	ControlEvents int    `json:"control_events"`
	ControlTotal  int    `json:"control_total"`
	MappingMethod string `json:"mapping_method"`
	QCFlags       string `json:"qc_flags"`
}

// ArmColumns is the header of the arm-level CSV.
var ArmColumns = []string{
	"trial_id", "study_label", "study_key", "studyID_csv", "dex_arm_index", "dex_arm_label",
	"dex_events", "dex_total", "control_label", "control_events", "control_total",
	"mapping_method", "qc_flags",
}

// Row returns the CSV cells in ArmColumns order.
func (a ArmRow) Row() []string {
	return []string{
		a.TrialID, a.StudyLabel, a.StudyKey, a.StudyIDCSV, strconv.Itoa(a.DexArmIndex), a.DexArmLabel,
		strconv.Itoa(a.DexEvents), strconv.Itoa(a.DexTotal), a.ControlLabel,
		strconv.Itoa(a.ControlEvents), strconv.Itoa(a.ControlTotal), a.MappingMethod, a.QCFlags,
	}
}

// ReportRow is the linkage status of one curated trial.
type ReportRow struct {
	TrialID    string `json:"trial_id"`
	StudyLabel string `json:"study_label"`
	Status     Status `json:"status"`
	Candidates string `json:"candidate_studyIDs"`
	Notes      string `json:"notes"`
}

// ReportColumns is the header of the linkage report CSV.
var ReportColumns = []string{"trial_id", "study_label", "status", "candidate_studyIDs", "notes"}

// Row returns the CSV cells in ReportColumns order.
func (r ReportRow) Row() []string {
	return []string{r.TrialID, r.StudyLabel, string(r.Status), r.Candidates, r.Notes}
}

// Coverage summarizes a linkage run.
type Coverage struct {
	NTrialsCurated       int `json:"n_trials_curated"`
	NExtractedTrials     int `json:"n_extracted_trials"`
	NExtractedRows       int `json:"n_extracted_rows"`
	NMissingInCSV        int `json:"n_missing_in_csv"`
	NControlMismatch     int `json:"n_control_mismatch"`
	NAmbiguousUnresolved int `json:"n_ambiguous_unresolved"`
	NInconsistentCSVRows int `json:"n_inconsistent_csv_rows"`
	NManuallyExcluded    int `json:"n_manually_excluded"`
	NNoDexArm            int `json:"n_no_dex_arm"`
	NMultiDexTrials      int `json:"n_multi_dex_trials"`
}

// Result is the output of one linkage run.
type Result struct {
	Arms     []ArmRow
	Report   []ReportRow
	Coverage Coverage
}

var (
	csvYearSuffixRe = regexp.MustCompile(`(?i)(?:19|20)\d{2}[a-z]?$`)
	dexArmRe        = regexp.MustCompile(`(?i)dexmedetomidine|\bdex\b`)

	allowedControls = map[string]bool{"placebo": true, "saline": true, "equivolume saline": true}
)

// StudyKeyFromCSVID maps event CSV study ids such as "Surname_drug_2016a" to
// the curated key namespace ("surname_2016").
func StudyKeyFromCSVID(studyID string) string {
	text := normalizer.CleanText(studyID)
	loc := csvYearSuffixRe.FindStringIndex(text)
	if loc == nil {
		return normalizer.StudyKey(text)
	}
	year := text[loc[0] : loc[0]+4]
	left := strings.TrimSpace(strings.TrimRight(text[:loc[0]], "_ "))
	author := strings.TrimSpace(strings.Split(left, "_")[0])
	if author == "" {
		return normalizer.StudyKey(text)
	}
	return normalizer.StudyKey(author + " " + year)
}

// Linker links curated trials to event counts under a fixed policy.
type Linker struct {
	policy *Policy
	logger logging.Logger
}

// NewLinker returns a Linker.  A nil policy is treated as empty.
func NewLinker(policy *Policy, logger logging.Logger) *Linker {
	if logger == nil {
		panic("linkage: logger is required")
	}
	if policy == nil {
		policy = &Policy{}
	}
	return &Linker{policy: policy, logger: logger}
}

// Link produces arm rows, one report row per record and the coverage counts.
// Malformed counts and failed integrity checks are schema errors.
func (l *Linker) Link(records []*trial.TrialRecord, events []EventRow) (*Result, error) {
	start := time.Now()

	byID := map[string][]EventRow{}
	for i, e := range events {
		if e.StudyID == "" {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
				"event row %d has an empty studyID", i+1)
		}
		byID[e.StudyID] = append(byID[e.StudyID], e)
	}
	inconsistent := map[string]bool{}
	for id, rows := range byID {
		first := rows[0].counts()
		for _, r := range rows[1:] {
			if r.counts() != first {
				inconsistent[id] = true
				break
			}
		}
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	lookup := map[string][]string{}
	for _, id := range ids {
		k := StudyKeyFromCSVID(id)
		lookup[k] = append(lookup[k], id)
	}

	res := &Result{}
	armsPerTrial := map[string]int{}
	for _, rec := range records {
		rows, report, err := l.linkOne(rec, byID, inconsistent, lookup)
		if err != nil {
			return nil, err
		}
		res.Arms = append(res.Arms, rows...)
		res.Report = append(res.Report, report)
		armsPerTrial[report.TrialID] += len(rows)
	}

	if err := l.checkIntegrity(records, res, armsPerTrial); err != nil {
		return nil, err
	}

	logging.LogStageDuration(l.logger, "linkage", start,
		logging.Int("trials", res.Coverage.NTrialsCurated),
		logging.Int("extracted_trials", res.Coverage.NExtractedTrials),
		logging.Int("arm_rows", res.Coverage.NExtractedRows),
		logging.Int("missing_in_csv", res.Coverage.NMissingInCSV))
	return res, nil
}

func (l *Linker) linkOne(
	rec *trial.TrialRecord,
	byID map[string][]EventRow,
	inconsistent map[string]bool,
	lookup map[string][]string,
) ([]ArmRow, ReportRow, error) {
	trialID := rec.StudyKey()
	report := ReportRow{TrialID: trialID, StudyLabel: rec.StudyLabel}

	if l.policy.excluded(trialID) {
		report.Status = StatusManuallyExcluded
		report.Notes = "excluded by manual audit policy"
		return nil, report, nil
	}

	studyKey := normalizer.StudyKey(rec.StudyLabel)
	resolved, usedAlias := l.policy.resolveKey(studyKey)
	override, hasOverride := l.policy.EventOverrides[trialID]

	candidates := lookup[resolved]
	report.Candidates = strings.Join(candidates, ";")
	selected, method := chooseCandidate(candidates)

	switch {
	case selected == "" && !hasOverride && len(candidates) == 0:
		report.Status = StatusMissingInCSV
		report.Notes = "no event_data.csv match for key=" + resolved
		return nil, report, nil
	case selected == "" && !hasOverride:
		report.Status = StatusAmbiguousUnresolved
		report.Notes = "multiple candidate studyIDs and no unique dexmedetomidine candidate"
		return nil, report, nil
	case selected == "" && hasOverride:
		selected = normalizer.CleanText(override.StudyIDCSV)
		if selected == "" {
			selected = MethodManualOverride
		}
		method = MethodManualOverride
		if report.Candidates == "" {
			report.Candidates = selected
		}
	}
	if usedAlias && method == MethodExactKey {
		method = MethodAliasKey
	}

	if hasOverride {
		rows := manualRows(rec, trialID, studyKey, selected, override)
		report.Status = StatusExtracted
		report.Notes = "selected " + selected + "; manual counts override applied"
		return rows, report, nil
	}

	if inconsistent[selected] {
		report.Status = StatusInconsistentRows
		report.Notes = "inconsistent event tuple across repeated complication rows for " + selected
		return nil, report, nil
	}

	event := byID[selected][0]
	if !allowedControls[strings.ToLower(event.Control)] {
		report.Status = StatusControlMismatch
		report.Notes = fmt.Sprintf("control '%s' is outside strict placebo/saline scope", event.Control)
		return nil, report, nil
	}

	indices := l.policy.keepArms(trialID, dexArmIndices(event))
	if len(indices) == 0 {
		report.Status = StatusNoDexArm
		report.Notes = "no dexmedetomidine arm detected in Intervention1/2/3"
		return nil, report, nil
	}

	controlEvents, err := parseCount(selected, "Control_cases", event.ControlCases)
	if err != nil {
		return nil, report, err
	}
	controlTotal, err := parseCount(selected, "Control_total", event.ControlTotal)
	if err != nil {
		return nil, report, err
	}
	if controlEvents > controlTotal {
		return nil, report, integrityError("control events exceed total for %s", selected)
	}

	var qc []string
	if usedAlias {
		qc = append(qc, QCUsedAlias)
	}
	if method == MethodAmbiguityRule {
		qc = append(qc, QCResolvedAmbiguity)
	}
	if len(indices) > 1 {
		qc = append(qc, QCMultiDexTrial)
	}

	rows := make([]ArmRow, 0, len(indices))
	for _, idx := range indices {
		arm := event.Arms[idx-1]
		dexEvents, err := parseCount(selected, fmt.Sprintf("Intervention%d_cases", idx), arm.Cases)
		if err != nil {
			return nil, report, err
		}
		dexTotal, err := parseCount(selected, totalColumn(idx), arm.Total)
		if err != nil {
			return nil, report, err
		}
		if dexEvents > dexTotal {
			return nil, report, integrityError("dex arm events exceed total for %s arm %d", selected, idx)
		}
		rows = append(rows, ArmRow{
			TrialID:       trialID,
			StudyLabel:    rec.StudyLabel,
			StudyKey:      studyKey,
			StudyIDCSV:    selected,
			DexArmIndex:   idx,
			DexArmLabel:   l.policy.armLabel(trialID, idx, arm.Label),
			DexEvents:     dexEvents,
			DexTotal:      dexTotal,
			ControlLabel:  event.Control,
			ControlEvents: controlEvents,
			ControlTotal:  controlTotal,
			MappingMethod: method,
			QCFlags:       strings.Join(qc, ";"),
		})
	}
	report.Status = StatusExtracted
	report.Notes = "selected " + selected
	return rows, report, nil
}

func manualRows(rec *trial.TrialRecord, trialID, studyKey, selected string, o EventOverride) []ArmRow {
	qc := QCManualCounts
	indices := o.ArmIndices()
	if len(indices) > 1 {
		qc += ";" + QCMultiDexTrial
	}
	rows := make([]ArmRow, 0, len(indices))
	for _, idx := range indices {
		arm := o.Arms[idx]
		rows = append(rows, ArmRow{
			TrialID:       trialID,
			StudyLabel:    rec.StudyLabel,
			StudyKey:      studyKey,
			StudyIDCSV:    selected,
			DexArmIndex:   idx,
			DexArmLabel:   normalizer.CleanText(arm.Label),
			DexEvents:     arm.Events,
			DexTotal:      arm.Total,
			ControlLabel:  normalizer.CleanText(o.ControlLabel),
			ControlEvents: o.ControlEvents,
			ControlTotal:  o.ControlTotal,
			MappingMethod: MethodManualOverride,
			QCFlags:       qc,
		})
	}
	return rows
}

func (l *Linker) checkIntegrity(records []*trial.TrialRecord, res *Result, armsPerTrial map[string]int) error {
	if len(res.Report) != len(records) {
		return integrityError("linkage report has %d rows for %d curated trials", len(res.Report), len(records))
	}

	seen := map[string]bool{}
	for _, a := range res.Arms {
		pair := a.TrialID + "#" + strconv.Itoa(a.DexArmIndex)
		if seen[pair] {
			return integrityError("duplicate (trial_id, dex_arm_index) row: (%s, %d)", a.TrialID, a.DexArmIndex)
		}
		seen[pair] = true
	}

	c := &res.Coverage
	c.NTrialsCurated = len(records)
	c.NExtractedRows = len(res.Arms)
	for _, r := range res.Report {
		switch r.Status {
		case StatusExtracted:
			c.NExtractedTrials++
		case StatusMissingInCSV:
			c.NMissingInCSV++
		case StatusControlMismatch:
			c.NControlMismatch++
		case StatusAmbiguousUnresolved:
			c.NAmbiguousUnresolved++
		case StatusInconsistentRows:
			c.NInconsistentCSVRows++
		case StatusManuallyExcluded:
			c.NManuallyExcluded++
		case StatusNoDexArm:
			c.NNoDexArm++
		}
	}
	for _, n := range armsPerTrial {
		if n > 1 {
			c.NMultiDexTrials++
		}
	}
	sum := c.NExtractedTrials + c.NMissingInCSV + c.NControlMismatch + c.NAmbiguousUnresolved +
		c.NInconsistentCSVRows + c.NManuallyExcluded + c.NNoDexArm
	if sum != c.NTrialsCurated {
		return integrityError("linkage statuses account for %d of %d curated trials", sum, c.NTrialsCurated)
	}
	return nil
}

// chooseCandidate picks the event study id for a key: the only candidate, or
// the only one naming dexmedetomidine.
func chooseCandidate(candidates []string) (string, string) {
	switch len(candidates) {
	case 0:
		return "", ""
	case 1:
		return candidates[0], MethodExactKey
	}
	var dex []string
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), "dexmedetomidine") {
			dex = append(dex, c)
		}
	}
	if len(dex) == 1 {
		return dex[0], MethodAmbiguityRule
	}
	return "", ""
}

func dexArmIndices(e EventRow) []int {
	var out []int
	for i, arm := range e.Arms {
		if arm.Label != "" && !strings.EqualFold(arm.Label, "NA") && dexArmRe.MatchString(arm.Label) {
			out = append(out, i+1)
		}
	}
	return out
}

func totalColumn(idx int) string {
	if idx == 1 {
		return "Intervention_total"
	}
	return fmt.Sprintf("Intervention%d_total", idx)
}

// parseCount reads a non-negative count written as an integer or a float.
func parseCount(studyID, column, text string) (int, error) {
	if text == "" || strings.EqualFold(text, "NA") {
		return 0, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
			"missing numeric value for %s of %s", column, studyID).WithDetail(studyID)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
			"invalid numeric value for %s of %s: %s", column, studyID, text).WithDetail(studyID)
	}
	v := int(f)
	if v < 0 {
		return 0, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
			"negative value for %s of %s: %d", column, studyID, v).WithDetail(studyID)
	}
	return v, nil
}

func integrityError(format string, args ...interface{}) error {
	return errors.Wrap(errors.NewSchemaError(errors.ErrCodeSchemaInvariant, format, args...),
		errors.ErrCodeLinkageIntegrity, "event linkage integrity check failed")
}

//Personal.AI order the ending
